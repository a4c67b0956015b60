package processor

import (
	"context"
	"fmt"
	"log"

	"github.com/nci/voxrgb/utils"
)

// minChunkSize keeps goroutine overhead small against the per-voxel work.
const minChunkSize = 4096

// Conversion is one immutable request to colour a volume.
type Conversion struct {
	Image    utils.Volume
	Colormap *utils.Colormap
	Window   utils.WindowPolicy
	Workers  int
	Cache    WindowCache
}

// Result is the output of a successful conversion.
type Result struct {
	RGB    *utils.RGBVolume
	Window utils.Window
}

// Run resolves the colour window, normalises the image against it and
// colours every voxel. Either a fully populated volume or an error is
// returned, never a partial output. The colouring pass is split in chunks
// run concurrently; ctx is checked between chunks.
func (c *Conversion) Run(ctx context.Context) (*Result, error) {
	if c.Image == nil {
		return nil, fmt.Errorf("%w: converting null image to RGB", utils.ErrNullImage)
	}
	if c.Colormap == nil || c.Colormap.Len() < 2 {
		return nil, fmt.Errorf("%w: converting to RGB without a legal colormap", utils.ErrInvalidColormap)
	}

	window, err := resolveWindow(c.Window, c.Image, c.Cache)
	if err != nil {
		return nil, err
	}

	pos, err := utils.Normalize(c.Image, window)
	if err != nil {
		return nil, err
	}

	n := pos.Len()
	out := &utils.RGBVolume{Geom: c.Image.Geometry(), Pix: make([]uint8, 3*n)}
	cm := c.Colormap

	limiter := NewConcLimiter(c.Workers)
	chunk := chunkSize(n, limiter.Level())
	for start := 0; start < n; start += chunk {
		if ctx.Err() != nil {
			break
		}
		end := start + chunk
		if end > n {
			end = n
		}

		limiter.Increase()
		go func(start, end int) {
			defer limiter.Decrease()
			for i := start; i < end; i++ {
				out.Set(i, cm.Resolve(pos.Data[i]))
			}
		}(start, end)
	}
	limiter.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Result{RGB: out, Window: window}, nil
}

func chunkSize(n, workers int) int {
	size := (n + 4*workers - 1) / (4 * workers)
	if size < minChunkSize {
		size = minChunkSize
	}
	return size
}

type MapperState int

const (
	Unconfigured MapperState = iota
	ImageSet
	ColormapSet
	Ready
	Converted
)

func (s MapperState) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case ImageSet:
		return "image set"
	case ColormapSet:
		return "colormap set"
	case Ready:
		return "ready"
	case Converted:
		return "converted"
	default:
		return fmt.Sprintf("MapperState(%d)", int(s))
	}
}

// VolumeMapper holds an image, a colormap and a window policy and turns
// them into an RGB volume on Update. It is not safe for concurrent use.
type VolumeMapper struct {
	image     utils.Volume
	colormap  *utils.Colormap
	window    utils.WindowPolicy
	workers   int
	converted bool

	rgb      *utils.RGBVolume
	resolved utils.Window

	// Info receives the progress summary of each conversion when set.
	Info *log.Logger
	// Cache, when set, memoises resolved windows across conversions.
	Cache   WindowCache
	summary *SummaryPrinter
}

// NewVolumeMapper returns a mapper with the default proportion window.
// workers <= 0 uses one worker per CPU.
func NewVolumeMapper(workers int) *VolumeMapper {
	return &VolumeMapper{window: utils.DefaultWindow(), workers: workers}
}

func (m *VolumeMapper) SetImage(v utils.Volume) error {
	if v == nil {
		return fmt.Errorf("%w: setting an empty image", utils.ErrNullImage)
	}
	m.image = v
	m.converted = false
	return nil
}

// SetColormap validates stops and replaces the colormap. On error the
// previous colormap is kept.
func (m *VolumeMapper) SetColormap(stops []utils.ColormapStop) error {
	cm, err := utils.NewColormap(stops)
	if err != nil {
		return err
	}
	return m.UseColormap(cm)
}

// UseColormap installs an already validated colormap.
func (m *VolumeMapper) UseColormap(cm *utils.Colormap) error {
	if cm == nil {
		return fmt.Errorf("%w: nil colormap", utils.ErrInvalidColormap)
	}
	m.colormap = cm
	m.converted = false
	return nil
}

// SetWindow replaces the window policy; the last policy set wins.
func (m *VolumeMapper) SetWindow(p utils.WindowPolicy) {
	m.window = p
	m.converted = false
}

func (m *VolumeMapper) SetColorWindowPolicyToAll() {
	m.SetWindow(utils.AllWindow())
}

func (m *VolumeMapper) SetColorWindowPolicyToRange(min, max float64) {
	m.SetWindow(utils.RangeWindow(min, max))
}

func (m *VolumeMapper) SetColorWindowPolicyToProportion(minP, maxP float64) {
	m.SetWindow(utils.ProportionWindow(minP, maxP))
}

func (m *VolumeMapper) WindowPolicy() utils.WindowPolicy {
	return m.window
}

func (m *VolumeMapper) State() MapperState {
	switch {
	case m.image == nil && m.colormap == nil:
		return Unconfigured
	case m.colormap == nil:
		return ImageSet
	case m.image == nil:
		return ColormapSet
	case m.converted:
		return Converted
	default:
		return Ready
	}
}

// Conversion snapshots the current configuration.
func (m *VolumeMapper) Conversion() *Conversion {
	return &Conversion{
		Image:    m.image,
		Colormap: m.colormap,
		Window:   m.window,
		Workers:  m.workers,
		Cache:    m.Cache,
	}
}

// Update converts with the current configuration. See Convert.
func (m *VolumeMapper) Update() error {
	_, err := m.Convert(context.Background())
	return err
}

// Convert recomputes the RGB volume from the current configuration. On
// failure nothing is returned and the output of the last successful
// conversion, if any, stays available from RGBImage.
func (m *VolumeMapper) Convert(ctx context.Context) (*utils.RGBVolume, error) {
	m.converted = false

	conv := m.Conversion()
	res, err := conv.Run(ctx)
	if err != nil {
		return nil, err
	}

	if m.Info != nil {
		if m.summary == nil {
			m.summary, err = NewSummaryPrinter()
		}
		if err == nil {
			var line string
			if line, err = m.summary.Summary(conv.Window, res.Window); err == nil {
				m.Info.Println(line)
			}
		}
		if err != nil {
			m.Info.Printf("summary template error: %v", err)
		}
	}

	m.rgb = res.RGB
	m.resolved = res.Window
	m.converted = true
	return res.RGB, nil
}

// RGBImage is the output of the last successful conversion.
func (m *VolumeMapper) RGBImage() *utils.RGBVolume {
	return m.rgb
}

// Window is the window resolved by the last successful conversion.
func (m *VolumeMapper) Window() utils.Window {
	return m.resolved
}
