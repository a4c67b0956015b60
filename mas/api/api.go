// Colormap metadata API

package main

import (
	"bytes"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/nci/gomemcache/memcache"
	"github.com/nci/voxrgb/processor"
	"github.com/nci/voxrgb/utils"
)

var (
	dbName   = flag.String("database", "voxrgb", "database name")
	dbUser   = flag.String("user", "api", "database user name")
	dbPool   = flag.Int("pool", 8, "database pool size")
	dbLimit  = flag.Int("limit", 64, "database concurrent requests")
	httpPort = flag.Int("port", 8080, "http port")
	mcURI    = flag.String("memcache", "", "memcache uri host:port")
)

type stopDoc struct {
	Key    float64 `json:"key"`
	Colour string  `json:"colour"`
}

type colormapDoc struct {
	Name  string    `json:"name"`
	Stops []stopDoc `json:"stops"`
}

// colormapAPI serves /colormaps/<name>. Names are looked up among the
// built-in colormaps first and then in the store, when there is one.
type colormapAPI struct {
	store *utils.ColormapStore
	mc    *memcache.Client
}

// Spit out a simple JSON-formatted error message for Content-Type: application/json
func httpJSONError(response http.ResponseWriter, err error, status int) {
	http.Error(response, fmt.Sprintf(`{ "error": %q }`, err.Error()), status)
}

func (api *colormapAPI) lookup(name string) (*utils.Colormap, error) {
	cm, err := utils.BuiltinColormap(name)
	if err == nil || api.store == nil {
		return cm, err
	}
	return api.store.Colormap(name)
}

func (api *colormapAPI) ServeHTTP(response http.ResponseWriter, request *http.Request) {
	name := strings.TrimPrefix(request.URL.Path, "/colormaps/")
	if name == request.URL.Path || len(name) == 0 || strings.Contains(name, "/") {
		response.Header().Set("Content-Type", "application/json")
		httpJSONError(response, errors.New("unknown operation; currently supported: /colormaps/<name>"), 400)
		return
	}

	legend := request.FormValue("legend") == "png"
	contentType := "application/json"
	if legend {
		contentType = "image/png"
	}
	response.Header().Set("Content-Type", contentType)

	var hash string
	if api.mc != nil {
		buff := md5.Sum([]byte(request.URL.RequestURI()))
		hash = hex.EncodeToString(buff[:])

		if cached, ok := api.mc.Get(hash); ok == nil {
			response.Write(cached.Value)
			return
		}
	}

	cm, err := api.lookup(name)
	if err != nil {
		response.Header().Set("Content-Type", "application/json")
		status := 500
		if errors.Is(err, utils.ErrInvalidColormap) {
			status = 404
		}
		httpJSONError(response, err, status)
		return
	}

	var payload []byte
	if legend {
		payload, err = legendPNG(cm, request.FormValue("width"), request.FormValue("height"))
	} else {
		payload, err = json.Marshal(toDoc(name, cm))
	}
	if err != nil {
		response.Header().Set("Content-Type", "application/json")
		httpJSONError(response, err, 400)
		return
	}

	response.Write(payload)

	if api.mc != nil {
		// don't care about errors; memcache may not necessarily retain this anyway
		api.mc.Set(&memcache.Item{Key: hash, Value: payload})
	}
}

func toDoc(name string, cm *utils.Colormap) *colormapDoc {
	doc := &colormapDoc{Name: name}
	for _, s := range cm.Stops() {
		c := colorful.Color{
			R: float64(s.Colour.R) / 255,
			G: float64(s.Colour.G) / 255,
			B: float64(s.Colour.B) / 255,
		}
		doc.Stops = append(doc.Stops, stopDoc{Key: s.Key, Colour: c.Hex()})
	}
	return doc
}

func legendPNG(cm *utils.Colormap, widthArg, heightArg string) ([]byte, error) {
	size := func(arg string, def int) (int, error) {
		if len(arg) == 0 {
			return def, nil
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 || n > 4096 {
			return 0, fmt.Errorf("invalid legend size %q", arg)
		}
		return n, nil
	}

	width, err := size(widthArg, 256)
	if err != nil {
		return nil, err
	}
	height, err := size(heightArg, 32)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := processor.EncodeImage(&buf, processor.LegendImage(cm, width, height), "png"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func main() {

	flag.Parse()

	log.Printf("dbUser %s dbName %s dbPool %d httpPort %d", *dbUser, *dbName, *dbPool, *httpPort)

	dbinfo := fmt.Sprintf("user=%s host=/var/run/postgresql dbname=%s sslmode=disable", *dbUser, *dbName)

	db, err := sql.Open("postgres", dbinfo)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	db.SetMaxIdleConns(*dbPool)
	db.SetMaxOpenConns(*dbLimit)

	api := &colormapAPI{store: utils.NewColormapStore(db)}
	if *mcURI != "" {
		// lazy connection; errors returned in .Get
		api.mc = memcache.New(*mcURI)
	}

	http.Handle("/colormaps/", api)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", *httpPort), nil))
}
