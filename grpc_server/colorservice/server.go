package colorservice

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/golang/protobuf/proto"
	"github.com/nci/voxrgb/metrics"
	"github.com/nci/voxrgb/processor"
	"github.com/nci/voxrgb/utils"
	"golang.org/x/net/context"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server implements ColorizerServer on top of a WorkerPool.
type Server struct {
	Pool    *WorkerPool
	Workers int

	// Cache and Store are optional.
	Cache processor.WindowCache
	Store *utils.ColormapStore

	Metrics metrics.Logger
	Verbose bool

	mu              sync.RWMutex
	defaultColormap *utils.Colormap
}

func NewServer(pool *WorkerPool, workers int, defaultColormap *utils.Colormap) *Server {
	if defaultColormap == nil {
		defaultColormap = utils.Rainbow
	}
	return &Server{Pool: pool, Workers: workers, defaultColormap: defaultColormap}
}

// SetDefaultColormap replaces the colormap used by requests that name
// none, e.g. after a config reload.
func (s *Server) SetDefaultColormap(cm *utils.Colormap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultColormap = cm
}

func (s *Server) colormap(req *Request) (*utils.Colormap, error) {
	if len(req.Stops) > 0 {
		return utils.NewColormap(req.Stops)
	}
	if len(strings.TrimSpace(req.Colormap)) == 0 {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.defaultColormap, nil
	}

	cm, err := utils.BuiltinColormap(req.Colormap)
	if err == nil || s.Store == nil {
		return cm, err
	}
	return s.Store.Colormap(req.Colormap)
}

func (s *Server) Convert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	collector := metrics.NewMetricsCollector(s.Metrics)
	defer collector.Log()
	info := collector.Info
	info.Source = "grpc"
	if in != nil {
		info.RequestSize = proto.Size(in)
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		info.RemoteAddr = p.Addr.String()
	}

	out, err := s.convert(ctx, in, info)
	if err != nil {
		info.Error = err.Error()
		if s.Verbose {
			log.Printf("Convert error: %v", err)
		}
		return nil, grpcError(err)
	}
	return out, nil
}

func (s *Server) convert(ctx context.Context, in *structpb.Struct, info *metrics.ConversionInfo) (*structpb.Struct, error) {
	req, err := DecodeRequest(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	info.Size = req.Volume.Geom.Size
	info.NumVoxels = req.Volume.Len()
	info.Window.Policy = req.Window.String()
	info.Colormap = req.Colormap

	cm, err := s.colormap(req)
	if err != nil {
		return nil, err
	}

	conv := &processor.Conversion{
		Image:    req.Volume,
		Colormap: cm,
		Window:   req.Window,
		Workers:  s.Workers,
		Cache:    s.Cache,
	}
	info.Workers = s.Workers

	task := NewTask(ctx, conv)
	s.Pool.AddQueue(task)

	select {
	case res := <-task.Resp:
		info.Window.Min = res.Window.Min
		info.Window.Max = res.Window.Max
		return EncodeResult(res.RGB, res.Window), nil
	case err := <-task.Error:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var errBadRequest = errors.New("malformed request")

// grpcError maps conversion failures onto gRPC status codes.
func grpcError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, ErrQueueFull):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, errBadRequest),
		errors.Is(err, utils.ErrNullImage),
		errors.Is(err, utils.ErrInvalidColormap),
		errors.Is(err, utils.ErrInvalidWindow):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, utils.ErrEmptyVolume), errors.Is(err, utils.ErrDegenerateWindow):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
