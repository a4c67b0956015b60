package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nci/voxrgb/grpc_server/colorservice"
	"github.com/nci/voxrgb/metrics"
	"github.com/nci/voxrgb/processor"
	"github.com/nci/voxrgb/utils"
	"golang.org/x/crypto/ssh/terminal"
	"google.golang.org/grpc"
)

var (
	configFile   = flag.String("conf", "", "YAML config file.")
	colormapArg  = flag.String("colormap", "", "Built-in colormap name (rainbow, gray, hot) or a colormap YAML file.")
	colormapDB   = flag.String("colormap_db", "", "Postgres DSN used to look up colormaps by name.")
	workers      = flag.Int("workers", 0, "Goroutines used for the conversion, 0 for one per CPU.")
	previewPath  = flag.String("preview", "", "Write a slice mosaic of the output as PNG or TIFF.")
	previewWidth = flag.Int("preview_width", 0, "Width in pixels of the preview mosaic.")
	legendPath   = flag.String("legend", "", "Write the colormap legend bar as PNG or TIFF.")
	serverAddr   = flag.String("server", "", "Convert on a remote Colorizer at host:port instead of locally.")
	logDir       = flag.String("log_dir", "", "Conversion log directory, - for stdout.")
	verbose      = flag.Bool("v", false, "Verbose mode for more outputs.")
)

var (
	Info  *log.Logger
	Error *log.Logger
)

var (
	passed = "OK"
	failed = "FAILED"
)

const legendHeight = 32

func inGreen(str string) string {
	return fmt.Sprintf("\x1b[32;1m%s\x1b[0m", str)
}

func inRed(str string) string {
	return fmt.Sprintf("\x1b[31;1m%s\x1b[0m", str)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] inputImage outputImage [ -all | -range min max | -proportion min_p max_p | -expr lo_expr hi_expr ]\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(out, "Without a window option the proportion window [0.01, 0.99] is used, or the window of the config file.\n\nFlags:\n")
	flag.PrintDefaults()
}

var errUsage = errors.New("invalid arguments")

// windowArgs holds the window option that follows the input and output
// paths. Policy is meaningless when Set is false.
type windowArgs struct {
	Set    bool
	Policy utils.WindowPolicy
	Expr   *utils.WindowExpr
}

func parseWindowArgs(args []string) (windowArgs, error) {
	var wa windowArgs
	if len(args) == 0 {
		return wa, nil
	}

	pair := func() (float64, float64, error) {
		if len(args) != 3 {
			return 0, 0, fmt.Errorf("%w: %s needs exactly two values", errUsage, args[0])
		}
		lo, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %s: %v", errUsage, args[0], err)
		}
		hi, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %s: %v", errUsage, args[0], err)
		}
		return lo, hi, nil
	}

	wa.Set = true
	switch strings.ToLower(args[0]) {
	case "-all":
		if len(args) != 1 {
			return wa, fmt.Errorf("%w: -all takes no values", errUsage)
		}
		wa.Policy = utils.AllWindow()
	case "-range":
		lo, hi, err := pair()
		if err != nil {
			return wa, err
		}
		wa.Policy = utils.RangeWindow(lo, hi)
	case "-proportion":
		lo, hi, err := pair()
		if err != nil {
			return wa, err
		}
		wa.Policy = utils.ProportionWindow(lo, hi)
	case "-expr":
		if len(args) != 3 {
			return wa, fmt.Errorf("%w: -expr needs exactly two expressions", errUsage)
		}
		we, err := utils.ParseWindowExpr(args[1], args[2])
		if err != nil {
			return wa, err
		}
		wa.Expr = we
	default:
		return wa, fmt.Errorf("%w: unknown option %s", errUsage, args[0])
	}
	return wa, nil
}

// loadColormap resolves the -colormap flag: a YAML file, a built-in name
// or, failing both, a name in the colormap store.
func loadColormap(arg string, config *utils.Config) (*utils.Colormap, string, error) {
	if len(arg) == 0 {
		cm, err := config.Colormap.Colormap()
		return cm, config.Colormap.Name, err
	}

	ext := strings.ToLower(filepath.Ext(arg))
	if ext == ".yaml" || ext == ".yml" {
		cm, err := utils.LoadColormapFile(arg)
		return cm, arg, err
	}

	cm, err := utils.BuiltinColormap(arg)
	if err == nil || len(*colormapDB) == 0 {
		return cm, arg, err
	}

	store, err := utils.OpenColormapStore(*colormapDB)
	if err != nil {
		return nil, arg, err
	}
	defer store.Close()
	cm, err = store.Colormap(arg)
	return cm, arg, err
}

func convertLocal(ctx context.Context, vol *utils.Float64Volume, cm *utils.Colormap, policy utils.WindowPolicy) (*utils.RGBVolume, utils.Window, error) {
	mapper := processor.NewVolumeMapper(*workers)
	mapper.Info = Info
	if err := mapper.SetImage(vol); err != nil {
		return nil, utils.Window{}, err
	}
	if err := mapper.UseColormap(cm); err != nil {
		return nil, utils.Window{}, err
	}
	mapper.SetWindow(policy)

	rv, err := mapper.Convert(ctx)
	if err != nil {
		return nil, utils.Window{}, err
	}
	return rv, mapper.Window(), nil
}

func convertRemote(ctx context.Context, addr string, vol *utils.Float64Volume, cm *utils.Colormap, policy utils.WindowPolicy) (*utils.RGBVolume, utils.Window, error) {
	conn, err := grpc.Dial(addr, grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(utils.DefaultRecvMsgSize), grpc.MaxCallSendMsgSize(utils.DefaultRecvMsgSize)))
	if err != nil {
		return nil, utils.Window{}, err
	}
	defer conn.Close()

	client := colorservice.NewColorizerClient(conn)
	out, err := client.Convert(ctx, colorservice.EncodeRequest(vol, policy, "", cm.Stops()))
	if err != nil {
		return nil, utils.Window{}, err
	}
	return colorservice.DecodeResult(out)
}

func run(config *utils.Config, input, output string, wa windowArgs, info *metrics.ConversionInfo) error {
	vol, err := utils.ReadVolume(input)
	if err != nil {
		return err
	}
	info.Size = vol.Geom.Size
	info.NumVoxels = vol.Len()

	cm, cmName, err := loadColormap(*colormapArg, config)
	if err != nil {
		return err
	}
	info.Colormap = cmName

	policy, expr := wa.Policy, wa.Expr
	if !wa.Set {
		if policy, expr, err = config.Window.Build(); err != nil {
			return err
		}
	}
	if expr != nil {
		if policy, err = expr.Policy(vol); err != nil {
			return err
		}
		if *verbose {
			Info.Printf("Window expressions %q, %q resolved to %v", expr.MinExpr, expr.MaxExpr, policy)
		}
	}
	info.Window.Policy = policy.String()

	ctx := context.Background()
	var rv *utils.RGBVolume
	var w utils.Window
	if len(*serverAddr) > 0 {
		rv, w, err = convertRemote(ctx, *serverAddr, vol, cm, policy)
	} else {
		rv, w, err = convertLocal(ctx, vol, cm, policy)
	}
	if err != nil {
		return err
	}
	info.Window.Min, info.Window.Max = w.Min, w.Max

	if err := utils.WriteRGBVolume(output, rv); err != nil {
		return err
	}

	if path := firstNonEmpty(*previewPath, config.Preview.Path); len(path) > 0 {
		width := config.Preview.Width
		if *previewWidth > 0 {
			width = *previewWidth
		}
		if err := processor.WritePreview(path, rv, config.Preview.Columns, width); err != nil {
			return err
		}
	}

	if path := firstNonEmpty(*legendPath, config.Preview.Legend); len(path) > 0 {
		if err := processor.WriteImage(path, processor.LegendImage(cm, 256, legendHeight)); err != nil {
			return err
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if len(v) > 0 {
			return v
		}
	}
	return ""
}

func main() {
	Error = log.New(os.Stderr, "gray2rainbow: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info = log.New(os.Stdout, "gray2rainbow: ", log.Ldate|log.Ltime|log.Lshortfile)

	flag.Usage = usage
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(1)
	}
	input, output := args[0], args[1]

	wa, err := parseWindowArgs(args[2:])
	if err != nil {
		Error.Println(err)
		if errors.Is(err, errUsage) {
			usage()
		}
		os.Exit(1)
	}

	config := utils.DefaultConfig()
	if len(*configFile) > 0 {
		if err := config.LoadConfigFile(*configFile); err != nil {
			Error.Printf("Error in loading config file: %v\n", err)
			os.Exit(1)
		}
	}
	if *workers <= 0 {
		*workers = config.Workers
	}

	metricsLogger := metrics.NewLogger(firstNonEmpty(*logDir, config.LogDir), *verbose, Error)
	collector := metrics.NewMetricsCollector(metricsLogger)
	collector.Info.Source = "cli"
	collector.Info.Input = input
	collector.Info.Output = output
	collector.Info.Workers = *workers
	if len(*serverAddr) > 0 {
		collector.Info.RemoteAddr = *serverAddr
	}

	if terminal.IsTerminal(int(os.Stdout.Fd())) {
		passed = inGreen(passed)
		failed = inRed(failed)
	}

	t0 := time.Now()
	err = run(config, input, output, wa, collector.Info)
	if err != nil {
		collector.Info.Error = err.Error()
	}
	collector.Log()
	if fl, ok := metricsLogger.(*metrics.FileLogger); ok {
		fl.Close()
	}

	if err != nil {
		Error.Printf("Conversion of %s failed: %v", input, err)
		fmt.Println(failed)
		os.Exit(1)
	}
	if *verbose {
		Info.Printf("Wrote %s in %v", output, time.Since(t0))
	}
	fmt.Println(passed)
}
