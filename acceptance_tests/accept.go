package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/nci/voxrgb/grpc_server/colorservice"
	proc "github.com/nci/voxrgb/processor"
	"github.com/nci/voxrgb/utils"
	"golang.org/x/crypto/ssh/terminal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var passed string = "Passed"
var failed string = "Failed"

var blackToRed = []utils.ColormapStop{
	{Key: 0, Colour: utils.RGB{R: 0, G: 0, B: 0}},
	{Key: 1, Colour: utils.RGB{R: 255, G: 0, B: 0}},
}

// Halfway checks the rounding of a voxel halfway through the window.
func Halfway(client *colorservice.ColorizerClient) bool {
	v, _ := utils.NewFloat64Volume(utils.NewGeometry(1, 1, 1), []float64{0.5})
	out, err := client.Convert(context.Background(), colorservice.EncodeRequest(v, utils.RangeWindow(0, 1), "", blackToRed))
	if err != nil {
		log.Printf("Convert error: %v", err)
		return false
	}
	rv, _, err := colorservice.DecodeResult(out)
	if err != nil {
		log.Printf("DecodeResult error: %v", err)
		return false
	}
	return rv.At(0) == utils.RGB{R: 128, G: 0, B: 0}
}

// Rejections checks the status codes of requests the server must refuse.
func Rejections(client *colorservice.ColorizerClient) bool {
	flat, _ := utils.NewFloat64Volume(utils.NewGeometry(2, 1, 1), []float64{5, 5})
	cases := []struct {
		req  func() error
		code codes.Code
	}{
		{func() error {
			_, err := client.Convert(context.Background(), colorservice.EncodeRequest(flat, utils.RangeWindow(5, 5), "", nil))
			return err
		}, codes.FailedPrecondition},
		{func() error {
			_, err := client.Convert(context.Background(), colorservice.EncodeRequest(flat, utils.AllWindow(), "", blackToRed[:1]))
			return err
		}, codes.InvalidArgument},
	}

	out := true
	for i, c := range cases {
		if code := status.Code(c.req()); code != c.code {
			log.Printf("case %d: got %v, expected %v", i, code, c.code)
			out = false
		}
	}
	return out
}

// Load sends nReq conversions of a synthetic volume, concLevel at a time,
// and checks every response against a local conversion.
func Load(client *colorservice.ColorizerClient, nReq, concLevel, side int) (bool, time.Duration) {
	geom := utils.NewGeometry(side, side, side)
	data := make([]float64, geom.NumVoxels())
	for i := range data {
		data[i] = float64((i * 7919) % 4096)
	}
	v, _ := utils.NewFloat64Volume(geom, data)

	conv := &proc.Conversion{Image: v, Colormap: utils.Rainbow, Window: utils.DefaultWindow()}
	expected, err := conv.Run(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	req := colorservice.EncodeRequest(v, utils.DefaultWindow(), "rainbow", nil)

	var failures int32
	start := time.Now()
	conc := proc.NewConcLimiter(concLevel)
	for i := 0; i < nReq; i++ {
		conc.Increase()
		go func() {
			defer conc.Decrease()
			out, err := client.Convert(context.Background(), req)
			if err != nil {
				log.Printf("Convert error: %v", err)
				atomic.AddInt32(&failures, 1)
				return
			}
			rv, _, err := colorservice.DecodeResult(out)
			if err != nil || string(rv.Pix) != string(expected.RGB.Pix) {
				atomic.AddInt32(&failures, 1)
			}
		}()
	}
	conc.Wait()

	return failures == 0, time.Since(start)
}

func inRed(str string) string {
	return fmt.Sprintf("\x1b[31;1m%s\x1b[0m", str)
}

func inGreen(str string) string {
	return fmt.Sprintf("\x1b[32;1m%s\x1b[0m", str)
}

func main() {
	host := flag.String("h", "localhost:6000", "Colorizer host name or address")
	suite := flag.String("s", "convert", "Test suite [convert, load]")
	conc := flag.Int("n", 6, "Concurrency level for acceptance tests")
	nReq := flag.Int("r", 200, "Number of requests sent by the load suite")
	side := flag.Int("side", 32, "Side length of the load test volume")
	flag.Parse()

	if terminal.IsTerminal(int(os.Stdout.Fd())) {
		passed = inGreen(passed)
		failed = inRed(failed)
	}

	conn, err := grpc.Dial(*host, grpc.WithInsecure())
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()
	client := colorservice.NewColorizerClient(conn)

	switch *suite {
	case "convert":
		fmt.Printf("Testing halfway rounding: ")
		if !Halfway(client) {
			fmt.Println(failed)
			os.Exit(1)
		}
		fmt.Println(passed)

		fmt.Printf("Testing rejected requests: ")
		if !Rejections(client) {
			fmt.Println(failed)
			os.Exit(1)
		}
		fmt.Println(passed)
	case "load":
		fmt.Printf("Testing Convert Sending %d requests: ", *nReq)
		ok, t := Load(client, *nReq, *conc, *side)
		if !ok {
			fmt.Println(failed)
			os.Exit(1)
		}
		fmt.Println(passed, t)
	default:
		fmt.Printf("Unknown suite %s\n", *suite)
		os.Exit(1)
	}
}
