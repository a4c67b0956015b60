package utils

import (
	"errors"
	"math"
	"testing"
)

var blackToRed = []ColormapStop{
	{0, RGB{0, 0, 0}},
	{1, RGB{255, 0, 0}},
}

func TestNewColormapRejectsBadStops(t *testing.T) {
	cases := map[string][]ColormapStop{
		"empty":     nil,
		"one stop":  {{0, RGB{1, 2, 3}}},
		"duplicate": {{0, RGB{}}, {0.5, RGB{}}, {0.5, RGB{255, 255, 255}}},
		"nan key":   {{0, RGB{}}, {math.NaN(), RGB{}}},
		"inf key":   {{0, RGB{}}, {math.Inf(1), RGB{}}},
	}
	for name, stops := range cases {
		if _, err := NewColormap(stops); !errors.Is(err, ErrInvalidColormap) {
			t.Errorf("%s: expected ErrInvalidColormap, got %v", name, err)
		}
	}
}

func TestNewColormapSortsStops(t *testing.T) {
	cm, err := NewColormap([]ColormapStop{{1, RGB{255, 0, 0}}, {0, RGB{0, 0, 0}}})
	if err != nil {
		t.Fatalf("failed to build colormap: %v", err)
	}
	stops := cm.Stops()
	if stops[0].Key != 0 || stops[1].Key != 1 {
		t.Errorf("stops not in key order: %v", stops)
	}

	stops[0].Colour = RGB{9, 9, 9}
	if cm.Resolve(0) != (RGB{0, 0, 0}) {
		t.Errorf("Stops must return a copy")
	}
}

func TestColormapClamp(t *testing.T) {
	cm := MustColormap([]ColormapStop{
		{0.2, RGB{10, 20, 30}},
		{0.5, RGB{100, 100, 100}},
		{0.8, RGB{200, 210, 220}},
	})
	for _, p := range []float64{-100, -1, 0, 0.2, math.Inf(-1), math.NaN()} {
		if c := cm.Resolve(p); c != (RGB{10, 20, 30}) {
			t.Errorf("Resolve(%v) = %v, expected first colour", p, c)
		}
	}
	for _, p := range []float64{0.8, 1, 7, math.Inf(1)} {
		if c := cm.Resolve(p); c != (RGB{200, 210, 220}) {
			t.Errorf("Resolve(%v) = %v, expected last colour", p, c)
		}
	}
}

func TestColormapInterpolation(t *testing.T) {
	stops := Rainbow.Stops()
	for i := 1; i < len(stops); i++ {
		s0, s1 := stops[i-1], stops[i]
		for step := 0; step <= 20; step++ {
			p := s0.Key + (s1.Key-s0.Key)*float64(step)/20
			w := (p - s0.Key) / (s1.Key - s0.Key)
			got := Rainbow.Resolve(p)

			chans := [][3]uint8{
				{s0.Colour.R, s1.Colour.R, got.R},
				{s0.Colour.G, s1.Colour.G, got.G},
				{s0.Colour.B, s1.Colour.B, got.B},
			}
			for _, c := range chans {
				want := uint8(math.Round((1-w)*float64(c[0]) + w*float64(c[1])))
				if c[2] != want {
					t.Errorf("Resolve(%v) channel = %d, expected %d", p, c[2], want)
				}
				lo, hi := c[0], c[1]
				if lo > hi {
					lo, hi = hi, lo
				}
				if c[2] < lo || c[2] > hi {
					t.Errorf("Resolve(%v) channel %d outside [%d,%d]", p, c[2], lo, hi)
				}
			}
		}
	}
}

func TestColormapContinuousAtKeys(t *testing.T) {
	const eps = 1e-9
	for _, s := range Rainbow.Stops() {
		below := Rainbow.Resolve(s.Key - eps)
		at := Rainbow.Resolve(s.Key)
		above := Rainbow.Resolve(s.Key + eps)
		if at != s.Colour || below != s.Colour || above != s.Colour {
			t.Errorf("discontinuity at key %v: %v %v %v, stored %v", s.Key, below, at, above, s.Colour)
		}
	}
}

func TestColormapHalfwayRoundsUp(t *testing.T) {
	cm := MustColormap(blackToRed)
	if c := cm.Resolve(0.5); c != (RGB{128, 0, 0}) {
		t.Errorf("Resolve(0.5) = %v, expected {128 0 0}", c)
	}
}

func TestColormapRamp(t *testing.T) {
	ramp := Gray.Ramp(256)
	if len(ramp) != 256 {
		t.Fatalf("expected 256 entries, got %d", len(ramp))
	}
	for i, c := range ramp {
		if int(c.R) != i || c.R != c.G || c.G != c.B || c.A != 0xff {
			t.Errorf("gray ramp entry %d = %v", i, c)
		}
	}

	if Gray.Ramp(0) != nil {
		t.Errorf("Ramp(0) should be nil")
	}
}

func TestBuiltinColormap(t *testing.T) {
	for _, name := range []string{"rainbow", "Gray", " grey ", "HOT"} {
		if _, err := BuiltinColormap(name); err != nil {
			t.Errorf("BuiltinColormap(%q): %v", name, err)
		}
	}
	if _, err := BuiltinColormap("viridis"); !errors.Is(err, ErrInvalidColormap) {
		t.Errorf("expected ErrInvalidColormap for an unknown name, got %v", err)
	}
}
