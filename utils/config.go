package utils

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v2"
)

var EtcDir = "."

// PaletteStop is one colormap stop as written in a config file. The colour
// is either a hex string ("#ff8000") or an [r, g, b] triplet.
type PaletteStop struct {
	Key    float64 `yaml:"key"`
	Colour string  `yaml:"colour"`
	RGB    []int   `yaml:"rgb"`
}

// Palette names a built-in colormap or lists its stops.
type Palette struct {
	Name  string        `yaml:"name"`
	Stops []PaletteStop `yaml:"stops"`
}

// WindowConfig selects the colour window policy. Policy is one of all,
// range, proportion or expr.
type WindowConfig struct {
	Policy  string   `yaml:"policy"`
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	MinExpr string   `yaml:"min_expr"`
	MaxExpr string   `yaml:"max_expr"`
}

type PreviewConfig struct {
	Path    string `yaml:"path"`
	Width   int    `yaml:"width"`
	Columns int    `yaml:"columns"`
	Legend  string `yaml:"legend"`
}

type ServiceConfig struct {
	Port            int    `yaml:"port"`
	PoolSize        int    `yaml:"pool_size"`
	Memcache        string `yaml:"memcache"`
	MaxRecvMsgSize  int    `yaml:"max_recv_msg_size"`
	ColormapDB      string `yaml:"colormap_db"`
	WindowCacheSize int    `yaml:"window_cache_size"`
}

// Config is the YAML configuration shared by the command line converter
// and the gRPC service.
type Config struct {
	Colormap      Palette       `yaml:"colormap"`
	Window        WindowConfig  `yaml:"window"`
	Workers       int           `yaml:"workers"`
	LogDir        string        `yaml:"log_dir"`
	Preview       PreviewConfig `yaml:"preview"`
	ServiceConfig ServiceConfig `yaml:"service_config"`
}

const DefaultRecvMsgSize = 64 * 1024 * 1024
const DefaultPreviewWidth = 1024

// DefaultConfig is the rainbow colormap with the 1%-99% proportion window.
func DefaultConfig() *Config {
	return &Config{
		Colormap: Palette{Name: "rainbow"},
		Window:   WindowConfig{Policy: "proportion"},
		Preview:  PreviewConfig{Width: DefaultPreviewWidth},
		ServiceConfig: ServiceConfig{
			Port:           6000,
			PoolSize:       8,
			MaxRecvMsgSize: DefaultRecvMsgSize,
		},
	}
}

// LoadConfigFile unmarshals a YAML config document on top of the defaults
// and validates its palette and window.
func (config *Config) LoadConfigFile(configFile string) error {
	*config = *DefaultConfig()
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	err = yaml.Unmarshal(cfg, config)
	if err != nil {
		return fmt.Errorf("Error at YAML parsing config document: %s. Error: %v", configFile, err)
	}

	if config.ServiceConfig.MaxRecvMsgSize <= 0 {
		config.ServiceConfig.MaxRecvMsgSize = DefaultRecvMsgSize
	}
	if config.Preview.Width <= 0 {
		config.Preview.Width = DefaultPreviewWidth
	}

	if _, err := config.Colormap.Colormap(); err != nil {
		return fmt.Errorf("Error in colormap of config document: %s. Error: %v", configFile, err)
	}
	if _, _, err := config.Window.Build(); err != nil {
		return fmt.Errorf("Error in window of config document: %s. Error: %v", configFile, err)
	}
	return nil
}

// LoadColormapFile reads a palette document, the colormap section of a
// config file on its own.
func LoadColormapFile(path string) (*Colormap, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Error while reading colormap file: %s. Error: %v", path, err)
	}

	var p Palette
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("Error at YAML parsing colormap document: %s. Error: %v", path, err)
	}
	return p.Colormap()
}

// Colormap builds the colormap the palette describes. Inline stops take
// precedence over the name.
func (p *Palette) Colormap() (*Colormap, error) {
	if len(p.Stops) == 0 {
		name := p.Name
		if len(strings.TrimSpace(name)) == 0 {
			name = "rainbow"
		}
		return BuiltinColormap(name)
	}

	stops := make([]ColormapStop, len(p.Stops))
	for i, ps := range p.Stops {
		c, err := ps.rgb()
		if err != nil {
			return nil, fmt.Errorf("%w: stop %d: %v", ErrInvalidColormap, i, err)
		}
		stops[i] = ColormapStop{Key: ps.Key, Colour: c}
	}
	return NewColormap(stops)
}

func (ps PaletteStop) rgb() (RGB, error) {
	if len(ps.Colour) > 0 {
		c, err := colorful.Hex(ps.Colour)
		if err != nil {
			return RGB{}, err
		}
		r, g, b := c.RGB255()
		return RGB{r, g, b}, nil
	}

	if len(ps.RGB) != 3 {
		return RGB{}, fmt.Errorf("colour needs a hex string or 3 channels, got %v", ps.RGB)
	}
	for _, ch := range ps.RGB {
		if ch < 0 || ch > 255 {
			return RGB{}, fmt.Errorf("channel %d outside [0,255]", ch)
		}
	}
	return RGB{uint8(ps.RGB[0]), uint8(ps.RGB[1]), uint8(ps.RGB[2])}, nil
}

// Build turns the window section into a policy. For the expr policy the
// returned WindowExpr must be evaluated against the volume to obtain the
// final range policy.
func (wc *WindowConfig) Build() (WindowPolicy, *WindowExpr, error) {
	bounds := func(defMin, defMax float64) (float64, float64) {
		min, max := defMin, defMax
		if wc.Min != nil {
			min = *wc.Min
		}
		if wc.Max != nil {
			max = *wc.Max
		}
		return min, max
	}

	switch strings.ToLower(strings.TrimSpace(wc.Policy)) {
	case "", "proportion":
		def := DefaultWindow()
		return ProportionWindow(bounds(def.Min, def.Max)), nil, nil
	case "all":
		return AllWindow(), nil, nil
	case "range":
		if wc.Min == nil || wc.Max == nil {
			return WindowPolicy{}, nil, fmt.Errorf("%w: range policy needs min and max", ErrInvalidWindow)
		}
		return RangeWindow(bounds(0, 0)), nil, nil
	case "expr":
		we, err := ParseWindowExpr(wc.MinExpr, wc.MaxExpr)
		if err != nil {
			return WindowPolicy{}, nil, err
		}
		return WindowPolicy{}, we, nil
	default:
		return WindowPolicy{}, nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidWindow, wc.Policy)
	}
}

// WatchConfig reloads configFile on SIGHUP and hands the new config to
// onReload. A config that fails to load is logged and ignored.
func WatchConfig(infoLog, errLog *log.Logger, configFile string, onReload func(*Config)) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			infoLog.Println("Caught SIGHUP, reloading config...")
			config := &Config{}
			if err := config.LoadConfigFile(configFile); err != nil {
				errLog.Printf("Error in loading config file: %v\n", err)
				continue
			}
			onReload(config)
		}
	}()
}
