package colorservice

import (
	"io/ioutil"
	"net"
	"os"
	"testing"

	"github.com/nci/voxrgb/metrics"
	"github.com/nci/voxrgb/processor"
	"github.com/nci/voxrgb/utils"
	"golang.org/x/net/context"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var blackToRed = []utils.ColormapStop{
	{Key: 0, Colour: utils.RGB{R: 0, G: 0, B: 0}},
	{Key: 1, Colour: utils.RGB{R: 255, G: 0, B: 0}},
}

func singleVoxel(x float64) *utils.Float64Volume {
	v, _ := utils.NewFloat64Volume(utils.NewGeometry(1, 1, 1), []float64{x})
	return v
}

func TestServerConvert(t *testing.T) {
	pool := CreateWorkerPool(2)
	defer pool.DeletePool()
	s := NewServer(pool, 1, nil)
	s.Cache = processor.NewMemWindowCache(0)

	out, err := s.Convert(context.Background(), EncodeRequest(singleVoxel(0.5), utils.RangeWindow(0, 1), "", blackToRed))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	rv, w, err := DecodeResult(out)
	if err != nil {
		t.Fatalf("DecodeResult failed: %v", err)
	}
	if c := rv.At(0); c != (utils.RGB{R: 128, G: 0, B: 0}) {
		t.Errorf("got %v, expected {128 0 0}", c)
	}
	if w.Min != 0 || w.Max != 1 {
		t.Errorf("unexpected window %v", w)
	}
}

func TestServerConvertAfterMetricsClosed(t *testing.T) {
	dir, err := ioutil.TempDir("", "voxrgb_server")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	pool := CreateWorkerPool(1)
	defer pool.DeletePool()
	s := NewServer(pool, 1, nil)
	logger := metrics.NewFileLogger(dir, 0, 0, false)
	s.Metrics = logger
	logger.Close()

	if _, err := s.Convert(context.Background(), EncodeRequest(singleVoxel(0.5), utils.RangeWindow(0, 1), "", blackToRed)); err != nil {
		t.Errorf("Convert failed: %v", err)
	}
}

func TestServerColormapSelection(t *testing.T) {
	pool := CreateWorkerPool(1)
	defer pool.DeletePool()
	s := NewServer(pool, 1, nil)

	v, _ := utils.NewFloat64Volume(utils.NewGeometry(2, 1, 1), []float64{0, 1})
	cases := []struct {
		colormap string
		last     utils.RGB
	}{
		{"", utils.RGB{R: 255, G: 0, B: 0}},
		{"gray", utils.RGB{R: 255, G: 255, B: 255}},
	}
	for _, c := range cases {
		out, err := s.Convert(context.Background(), EncodeRequest(v, utils.AllWindow(), c.colormap, nil))
		if err != nil {
			t.Errorf("%q: %v", c.colormap, err)
			continue
		}
		rv, _, _ := DecodeResult(out)
		if got := rv.At(1); got != c.last {
			t.Errorf("%q: last voxel %v, expected %v", c.colormap, got, c.last)
		}
	}

	s.SetDefaultColormap(utils.Gray)
	out, err := s.Convert(context.Background(), EncodeRequest(v, utils.AllWindow(), "", nil))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if rv, _, _ := DecodeResult(out); rv.At(1) != (utils.RGB{R: 255, G: 255, B: 255}) {
		t.Errorf("reloaded default colormap not used, got %v", rv.At(1))
	}
}

func TestServerErrorCodes(t *testing.T) {
	pool := CreateWorkerPool(1)
	defer pool.DeletePool()
	s := NewServer(pool, 1, nil)

	cases := []struct {
		name string
		err  func() error
		code codes.Code
	}{
		{"degenerate range", func() error {
			_, err := s.Convert(context.Background(), EncodeRequest(singleVoxel(5), utils.RangeWindow(5, 5), "", nil))
			return err
		}, codes.FailedPrecondition},
		{"flat volume", func() error {
			_, err := s.Convert(context.Background(), EncodeRequest(singleVoxel(5), utils.AllWindow(), "", nil))
			return err
		}, codes.FailedPrecondition},
		{"one stop", func() error {
			_, err := s.Convert(context.Background(), EncodeRequest(singleVoxel(5), utils.RangeWindow(0, 1), "", blackToRed[:1]))
			return err
		}, codes.InvalidArgument},
		{"unknown colormap", func() error {
			_, err := s.Convert(context.Background(), EncodeRequest(singleVoxel(5), utils.RangeWindow(0, 1), "viridis", nil))
			return err
		}, codes.InvalidArgument},
		{"malformed", func() error {
			_, err := s.Convert(context.Background(), nil)
			return err
		}, codes.InvalidArgument},
	}
	for _, c := range cases {
		if code := status.Code(c.err()); code != c.code {
			t.Errorf("%s: got %v, expected %v", c.name, code, c.code)
		}
	}
}

func TestServerQueueFull(t *testing.T) {
	// no workers and no queue slots
	pool := &WorkerPool{PoolSize: 1, TaskQueue: make(chan *Task), done: make(chan struct{})}
	s := NewServer(pool, 1, nil)

	_, err := s.Convert(context.Background(), EncodeRequest(singleVoxel(0.5), utils.RangeWindow(0, 1), "", nil))
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("got %v, expected ResourceExhausted", err)
	}
}

func TestServerCancelled(t *testing.T) {
	pool := &WorkerPool{PoolSize: 1, TaskQueue: make(chan *Task, 1), done: make(chan struct{})}
	s := NewServer(pool, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Convert(ctx, EncodeRequest(singleVoxel(0.5), utils.RangeWindow(0, 1), "", nil))
	if status.Code(err) != codes.Canceled {
		t.Errorf("got %v, expected Canceled", err)
	}
}

func TestColorizerOverGRPC(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	pool := CreateWorkerPool(2)
	defer pool.DeletePool()

	gs := grpc.NewServer()
	RegisterColorizerServer(gs, NewServer(pool, 2, nil))
	go gs.Serve(lis)
	defer gs.Stop()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	conn, err := grpc.DialContext(context.Background(), "bufnet", grpc.WithContextDialer(dialer), grpc.WithInsecure())
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()
	client := NewColorizerClient(conn)

	v, _ := utils.NewFloat64Volume(utils.NewGeometry(5, 1, 1), []float64{2, 5, 9, 1, 7})
	out, err := client.Convert(context.Background(), EncodeRequest(v, utils.AllWindow(), "gray", nil))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	rv, w, err := DecodeResult(out)
	if err != nil {
		t.Fatalf("DecodeResult failed: %v", err)
	}
	if w.Min != 1 || w.Max != 9 {
		t.Errorf("window %v, expected [1,9]", w)
	}
	if rv.At(2) != (utils.RGB{R: 255, G: 255, B: 255}) || rv.At(3) != (utils.RGB{}) {
		t.Errorf("unexpected colours %v %v", rv.At(2), rv.At(3))
	}

	_, err = client.Convert(context.Background(), EncodeRequest(v, utils.RangeWindow(3, 3), "", nil))
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("got %v, expected FailedPrecondition", err)
	}
}
