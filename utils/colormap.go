package utils

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strings"
)

// RGB is an 8-bit per channel colour.
type RGB struct {
	R, G, B uint8
}

// RGBA converts the colour to an opaque color.RGBA.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{c.R, c.G, c.B, 0xff}
}

// ColormapStop places a colour at a position of the colour window. Keys
// are conventionally in [0, 1]; keys outside that interval extend the
// window beyond the nearest end colour.
type ColormapStop struct {
	Key    float64 `yaml:"key" json:"key"`
	Colour RGB     `yaml:"-" json:"colour"`
}

// Colormap is an ordered, immutable set of colour stops.
type Colormap struct {
	stops []ColormapStop
}

// NewColormap validates stops and returns them as a colormap ordered by
// key. At least two stops with distinct, finite keys are required.
func NewColormap(stops []ColormapStop) (*Colormap, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("%w: colormap should contain at least two colours, got %d", ErrInvalidColormap, len(stops))
	}

	sorted := make([]ColormapStop, len(stops))
	copy(sorted, stops)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	for i, s := range sorted {
		if math.IsNaN(s.Key) || math.IsInf(s.Key, 0) {
			return nil, fmt.Errorf("%w: colour key %v is not a finite number", ErrInvalidColormap, s.Key)
		}
		if i > 0 && sorted[i-1].Key == s.Key {
			return nil, fmt.Errorf("%w: duplicate colour key %v", ErrInvalidColormap, s.Key)
		}
	}

	return &Colormap{stops: sorted}, nil
}

// MustColormap is NewColormap for stops known to be valid at compile time.
func MustColormap(stops []ColormapStop) *Colormap {
	cm, err := NewColormap(stops)
	if err != nil {
		panic(err)
	}
	return cm
}

// Len is the number of stops.
func (cm *Colormap) Len() int {
	return len(cm.stops)
}

// Stops returns a copy of the stops in key order.
func (cm *Colormap) Stops() []ColormapStop {
	out := make([]ColormapStop, len(cm.stops))
	copy(out, cm.stops)
	return out
}

// Resolve returns the colour at position p. Positions at or beyond the
// first and last keys take the end colours; positions in between are
// linearly interpolated between the bracketing stops and rounded half
// away from zero. A NaN position takes the first colour.
func (cm *Colormap) Resolve(p float64) RGB {
	first, last := cm.stops[0], cm.stops[len(cm.stops)-1]
	if p <= first.Key || math.IsNaN(p) {
		return first.Colour
	}
	if p >= last.Key {
		return last.Colour
	}

	// smallest k1 >= p; p > first.Key so i >= 1
	i := sort.Search(len(cm.stops), func(i int) bool { return cm.stops[i].Key >= p })
	s0, s1 := cm.stops[i-1], cm.stops[i]
	w := (p - s0.Key) / (s1.Key - s0.Key)

	return RGB{
		interpolateChannel(s0.Colour.R, s1.Colour.R, w),
		interpolateChannel(s0.Colour.G, s1.Colour.G, w),
		interpolateChannel(s0.Colour.B, s1.Colour.B, w),
	}
}

// interpolateChannel returns round((1-w)*a + w*b). With w in [0, 1] the
// result stays within [min(a,b), max(a,b)].
func interpolateChannel(a, b uint8, w float64) uint8 {
	return uint8(math.Round((1.0-w)*float64(a) + w*float64(b)))
}

// Ramp samples the colormap at n evenly spaced positions between its first
// and last keys, producing a palette suitable for a legend bar.
func (cm *Colormap) Ramp(n int) []color.RGBA {
	if n <= 0 {
		return nil
	}
	ramp := make([]color.RGBA, n)
	if n == 1 {
		ramp[0] = cm.stops[0].Colour.RGBA()
		return ramp
	}

	lo, hi := cm.stops[0].Key, cm.stops[len(cm.stops)-1].Key
	for i := range ramp {
		p := lo + (hi-lo)*float64(i)/float64(n-1)
		ramp[i] = cm.Resolve(p).RGBA()
	}
	return ramp
}

// Rainbow is the PET rainbow: black, purple, blue, green, yellow, red.
var Rainbow = MustColormap([]ColormapStop{
	{0.0000, RGB{0, 0, 0}},
	{0.1255, RGB{64, 0, 128}},
	{0.2510, RGB{0, 0, 255}},
	{0.3765, RGB{0, 255, 0}},
	{0.6275, RGB{255, 255, 0}},
	{1.0000, RGB{255, 0, 0}},
})

var Gray = MustColormap([]ColormapStop{
	{0, RGB{0, 0, 0}},
	{1, RGB{255, 255, 255}},
})

var Hot = MustColormap([]ColormapStop{
	{0, RGB{0, 0, 0}},
	{0.375, RGB{255, 0, 0}},
	{0.75, RGB{255, 255, 0}},
	{1, RGB{255, 255, 255}},
})

var builtinColormaps = map[string]*Colormap{
	"rainbow": Rainbow,
	"gray":    Gray,
	"grey":    Gray,
	"hot":     Hot,
}

// BuiltinColormap looks up a colormap shipped with the package by name.
func BuiltinColormap(name string) (*Colormap, error) {
	cm, found := builtinColormaps[strings.ToLower(strings.TrimSpace(name))]
	if !found {
		return nil, fmt.Errorf("%w: unknown colormap %q", ErrInvalidColormap, name)
	}
	return cm, nil
}
