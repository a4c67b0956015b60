package utils

import (
	"fmt"
)

// Normalize converts every voxel of v to its position in window w,
// (x - min) / (max - min). Positions are not clamped: voxels outside the
// window fall below 0 or above 1 and take the colormap's end colours.
func Normalize(v Volume, w Window) (*Float64Volume, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: cannot normalise a nil volume", ErrNullImage)
	}

	min, max := w.Min, w.Max
	if min == max {
		return nil, fmt.Errorf("%w: normalising by [%v,%v] divides by zero", ErrDegenerateWindow, min, max)
	}
	if min > max {
		min, max = max, min
	}

	out := &Float64Volume{Geom: v.Geometry(), Data: make([]float64, v.Len())}
	span := max - min
	if fv, ok := v.(*Float64Volume); ok {
		for i, x := range fv.Data {
			out.Data[i] = (x - min) / span
		}
		return out, nil
	}

	for i := range out.Data {
		out.Data[i] = (v.At(i) - min) / span
	}
	return out, nil
}
