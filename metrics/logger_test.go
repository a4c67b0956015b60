package metrics

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestFileLogger(t *testing.T) {
	dir, err := ioutil.TempDir("", "voxrgb_metrics")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	logger := NewFileLogger(dir, 0, 0, false)
	for _, input := range []string{"a.npy", "b.npy"} {
		collector := NewMetricsCollector(logger)
		collector.Info.Input = input
		collector.Info.Window.Policy = "all"
		collector.Log()
	}
	logger.Close()

	raw, err := ioutil.ReadFile(filepath.Join(dir, "conversions.log"))
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	for _, input := range []string{"a.npy", "b.npy"} {
		var info ConversionInfo
		if err := dec.Decode(&info); err != nil {
			t.Fatalf("failed to decode record: %v", err)
		}
		if info.Input != input || info.Window.Policy != "all" {
			t.Errorf("unexpected record %+v", info)
		}
	}
}

func TestFileLoggerRotation(t *testing.T) {
	dir, err := ioutil.TempDir("", "voxrgb_metrics")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	logger := NewFileLogger(dir, 1, 2, false)
	for i := 0; i < 3; i++ {
		NewMetricsCollector(logger).Log()
	}
	logger.Close()

	for _, name := range []string{"conversions.log", "conversions.log.0", "conversions.log.1"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestFileLoggerLogAfterClose(t *testing.T) {
	dir, err := ioutil.TempDir("", "voxrgb_metrics")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	logger := NewFileLogger(dir, 0, 0, false)
	NewMetricsCollector(logger).Log()
	logger.Close()

	NewMetricsCollector(logger).Log()
	logger.Close()

	raw, err := ioutil.ReadFile(filepath.Join(dir, "conversions.log"))
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if n := bytes.Count(raw, []byte("\n")); n != 1 {
		t.Errorf("got %d records, expected only the one logged before Close", n)
	}
}

func TestNormaliseNetworkAddr(t *testing.T) {
	info := &ConversionInfo{RemoteAddr: "10.0.0.1:5123"}
	if _, err := info.ToJSON(); err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	if info.RemoteHost != "10.0.0.1" || info.RemotePort != "5123" {
		t.Errorf("got host %q port %q", info.RemoteHost, info.RemotePort)
	}

	info = &ConversionInfo{RemoteAddr: "bufconn"}
	info.ToJSON()
	if info.RemoteHost != "bufconn" || info.RemotePort != "" {
		t.Errorf("got host %q port %q", info.RemoteHost, info.RemotePort)
	}
}

func TestNewLogger(t *testing.T) {
	if NewLogger("", false, nil) != nil {
		t.Errorf("expected no logger for an empty log dir")
	}
	if _, ok := NewLogger("-", false, nil).(*StdoutLogger); !ok {
		t.Errorf("expected a StdoutLogger for -")
	}
}
