package utils

import (
	"fmt"
	"math"
	"sort"
)

type WindowKind int

const (
	// WindowAll maps the full data range.
	WindowAll WindowKind = iota
	// WindowRange maps a fixed [min, max] interval.
	WindowRange
	// WindowProportion discards the lowest and highest voxel fractions.
	WindowProportion
)

func (k WindowKind) String() string {
	switch k {
	case WindowAll:
		return "all"
	case WindowRange:
		return "range"
	case WindowProportion:
		return "proportion"
	default:
		return fmt.Sprintf("WindowKind(%d)", int(k))
	}
}

// WindowPolicy selects the scalar interval mapped onto the colormap. It is
// a value: build it with one of the constructors below and pass it along.
type WindowPolicy struct {
	Kind WindowKind
	Min  float64
	Max  float64
}

func AllWindow() WindowPolicy {
	return WindowPolicy{Kind: WindowAll, Min: 0, Max: 1}
}

// RangeWindow maps [min, max]; the bounds are swapped if given reversed.
func RangeWindow(min, max float64) WindowPolicy {
	if min > max {
		min, max = max, min
	}
	return WindowPolicy{Kind: WindowRange, Min: min, Max: max}
}

// ProportionWindow maps the interval between the minP and maxP quantiles
// of the voxel values. Proportions are swapped if reversed and clamped to
// [0, 1].
func ProportionWindow(minP, maxP float64) WindowPolicy {
	if minP > maxP {
		minP, maxP = maxP, minP
	}
	return WindowPolicy{Kind: WindowProportion, Min: clamp01(minP), Max: clamp01(maxP)}
}

// DefaultWindow drops the lowest and highest percent of voxels.
func DefaultWindow() WindowPolicy {
	return ProportionWindow(0.01, 0.99)
}

func (p WindowPolicy) String() string {
	switch p.Kind {
	case WindowAll:
		return "all"
	default:
		return fmt.Sprintf("%s [%v,%v]", p.Kind, p.Min, p.Max)
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Window is a resolved scalar interval.
type Window struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (w Window) String() string {
	return fmt.Sprintf("[%v,%v]", w.Min, w.Max)
}

// ResolveWindow computes the scalar window of v under policy p. NaN and
// infinite voxels take no part in the All and Proportion scans.
func ResolveWindow(p WindowPolicy, v Volume) (Window, error) {
	if !isFinite(p.Min) || !isFinite(p.Max) {
		return Window{}, fmt.Errorf("%w: %s policy bounds must be finite, got [%v,%v]", ErrInvalidWindow, p.Kind, p.Min, p.Max)
	}

	var w Window
	switch p.Kind {
	case WindowAll:
		if v == nil || v.Len() == 0 {
			return Window{}, fmt.Errorf("%w: no voxels to scan for the full range", ErrEmptyVolume)
		}
		min, max, ok := minMax(v)
		if !ok {
			return Window{}, fmt.Errorf("%w: no finite voxels", ErrEmptyVolume)
		}
		w = Window{min, max}

	case WindowRange:
		w = Window{p.Min, p.Max}
		if w.Min > w.Max {
			w.Min, w.Max = w.Max, w.Min
		}

	case WindowProportion:
		var err error
		w, err = proportionWindow(p.Min, p.Max, v)
		if err != nil {
			return Window{}, err
		}

	default:
		return Window{}, fmt.Errorf("%w: unknown policy %v", ErrInvalidWindow, p.Kind)
	}

	if w.Min == w.Max {
		return Window{}, fmt.Errorf("%w: lower and upper bound are both %v, possibly a flat image or a bad range", ErrDegenerateWindow, w.Min)
	}
	return w, nil
}

// proportionWindow sorts the voxel values and picks the ceil(minP*N)-th
// and floor(maxP*N)-th of them, both clamped to the valid index range.
func proportionWindow(minP, maxP float64, v Volume) (Window, error) {
	if v == nil || v.Len() == 0 {
		return Window{}, fmt.Errorf("%w: no voxels to sort", ErrEmptyVolume)
	}

	values := Values(v)
	n := 0
	for _, x := range values {
		if isFinite(x) {
			values[n] = x
			n++
		}
	}
	values = values[:n]
	if n == 0 {
		return Window{}, fmt.Errorf("%w: no finite voxels", ErrEmptyVolume)
	}
	sort.Float64s(values)

	lo := values[clampIndex(math.Ceil(minP*float64(n)), n)]
	hi := values[clampIndex(math.Floor(maxP*float64(n)), n)]
	if lo > hi {
		lo, hi = hi, lo
	}
	return Window{lo, hi}, nil
}

func clampIndex(f float64, n int) int {
	if f <= 0 {
		return 0
	}
	if f >= float64(n-1) {
		return n - 1
	}
	return int(f)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
