package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/nci/voxrgb/grpc_server/colorservice"
	"github.com/nci/voxrgb/metrics"
	"github.com/nci/voxrgb/processor"
	"github.com/nci/voxrgb/utils"
	"google.golang.org/grpc"
)

var (
	Info  *log.Logger
	Error *log.Logger
)

func main() {
	port := flag.Int("p", 0, "gRPC server listening port (default from config, 6000).")
	poolSize := flag.Int("n", 0, "Maximum number of requests handled concurrently (default from config, 8).")
	workers := flag.Int("workers", 0, "Goroutines used by each conversion, 0 for one per CPU.")
	configFile := flag.String("conf", "", "YAML config file.")
	memcacheURI := flag.String("memcache", "", "Memcache address for resolved windows, e.g. localhost:11211.")
	colormapDB := flag.String("colormap_db", "", "Postgres DSN of the colormap store.")
	logDir := flag.String("log_dir", "", "Conversion log directory, - for stdout.")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	Error = log.New(os.Stderr, "Colorizer: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info = log.New(os.Stdout, "Colorizer: ", log.Ldate|log.Ltime|log.Lshortfile)

	config := utils.DefaultConfig()
	if len(*configFile) > 0 {
		if err := config.LoadConfigFile(*configFile); err != nil {
			Error.Printf("Error in loading config file: %v\n", err)
			os.Exit(2)
		}
	}
	svc := config.ServiceConfig
	if *port > 0 {
		svc.Port = *port
	}
	if *poolSize > 0 {
		svc.PoolSize = *poolSize
	}
	if len(*memcacheURI) > 0 {
		svc.Memcache = *memcacheURI
	}
	if len(*colormapDB) > 0 {
		svc.ColormapDB = *colormapDB
	}
	if *workers <= 0 {
		*workers = config.Workers
	}
	if len(*logDir) == 0 {
		*logDir = config.LogDir
	}

	defaultColormap, err := config.Colormap.Colormap()
	if err != nil {
		Error.Printf("Failed to build default colormap: %v", err)
		os.Exit(2)
	}

	pool := colorservice.CreateWorkerPool(svc.PoolSize)
	s := colorservice.NewServer(pool, *workers, defaultColormap)
	s.Verbose = *verbose
	s.Metrics = metrics.NewLogger(*logDir, *verbose, Error)

	if len(svc.Memcache) > 0 {
		s.Cache = processor.NewMemcacheWindowCache(svc.Memcache)
	} else {
		s.Cache = processor.NewMemWindowCache(svc.WindowCacheSize)
	}

	if len(svc.ColormapDB) > 0 {
		store, err := utils.OpenColormapStore(svc.ColormapDB)
		if err != nil {
			Error.Printf("Failed to open colormap store: %v", err)
			os.Exit(2)
		}
		defer store.Close()
		s.Store = store
	}

	if len(*configFile) > 0 {
		utils.WatchConfig(Info, Error, *configFile, func(c *utils.Config) {
			cm, err := c.Colormap.Colormap()
			if err != nil {
				Error.Printf("Keeping previous colormap: %v", err)
				return
			}
			s.SetDefaultColormap(cm)
			Info.Printf("Default colormap reloaded from %s", *configFile)
		})
	}

	gs := grpc.NewServer(
		grpc.MaxRecvMsgSize(svc.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(svc.MaxRecvMsgSize),
	)
	colorservice.RegisterColorizerServer(gs, s)

	// In-flight Convert calls log their metrics on return, so the pool and
	// the metrics logger are released only after the server has drained.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		Info.Printf("Shutting down")
		gs.GracefulStop()
		pool.DeletePool()
		if fl, ok := s.Metrics.(*metrics.FileLogger); ok {
			fl.Close()
		}
		os.Exit(1)
	}()

	lis, err := reuseport.Listen("tcp", fmt.Sprintf(":%d", svc.Port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	Info.Printf("Colorizer listening on :%d with %d workers", svc.Port, svc.PoolSize)
	if err := gs.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
	// Serve returns as soon as GracefulStop closes the listener; the signal
	// handler exits once the drain is complete.
	select {}
}
