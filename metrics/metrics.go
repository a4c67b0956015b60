package metrics

import (
	"bytes"
	"encoding/json"
	"net"
	"time"
)

type WindowInfo struct {
	Policy string  `json:"policy"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// ConversionInfo describes one conversion, from the command line or from
// an RPC.
type ConversionInfo struct {
	ReqTime     string        `json:"req_time"`
	ReqDuration time.Duration `json:"req_duration"`
	Source      string        `json:"source"`
	Input       string        `json:"input"`
	Output      string        `json:"output"`
	RemoteAddr  string        `json:"remote_addr,omitempty"`
	RemoteHost  string        `json:"remote_host,omitempty"`
	RemotePort  string        `json:"remote_port,omitempty"`
	Size        [3]int        `json:"size"`
	NumVoxels   int           `json:"num_voxels"`
	Workers     int           `json:"workers"`
	RequestSize int           `json:"request_size,omitempty"`
	Colormap    string        `json:"colormap"`
	Window      *WindowInfo   `json:"window"`
	Error       string        `json:"error,omitempty"`
}

type MetricsCollector struct {
	Info   *ConversionInfo
	logger Logger
	start  time.Time
}

// NewMetricsCollector starts timing a conversion.
func NewMetricsCollector(logger Logger) *MetricsCollector {
	now := time.Now()
	return &MetricsCollector{
		Info: &ConversionInfo{
			ReqTime: now.Format(time.RFC3339),
			Window:  &WindowInfo{},
		},
		logger: logger,
		start:  now,
	}
}

// Log stamps the duration and hands the record to the logger.
func (m *MetricsCollector) Log() {
	m.Info.ReqDuration = time.Since(m.start)
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *ConversionInfo) ToJSON() (string, error) {
	i.normaliseNetworkAddr(i.RemoteAddr)

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(i)
	if err == nil {
		return buf.String(), nil
	} else {
		return "", err
	}
}

func (i *ConversionInfo) normaliseNetworkAddr(addr string) {
	if len(addr) == 0 {
		return
	}
	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		i.RemoteHost = host
		i.RemotePort = port
	} else {
		i.RemoteHost = addr
	}
}
