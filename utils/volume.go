package utils

import (
	"fmt"
	"math"
)

// Geometry holds the spatial metadata of a volume. It is opaque to the
// colour mapping and copied verbatim to every output volume.
type Geometry struct {
	Size      [3]int     `yaml:"size" json:"size"`
	Origin    [3]float64 `yaml:"origin" json:"origin"`
	Spacing   [3]float64 `yaml:"spacing" json:"spacing"`
	Direction [9]float64 `yaml:"direction" json:"direction"`
}

// NewGeometry returns a geometry of the given extent with zero origin,
// unit spacing and identity orientation.
func NewGeometry(x, y, z int) Geometry {
	return Geometry{
		Size:      [3]int{x, y, z},
		Spacing:   [3]float64{1, 1, 1},
		Direction: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
}

// NumVoxels is the product of the extent.
func (g Geometry) NumVoxels() int {
	return g.Size[0] * g.Size[1] * g.Size[2]
}

// Index maps a voxel coordinate to its flat index. X varies fastest.
func (g Geometry) Index(x, y, z int) int {
	return x + g.Size[0]*(y+g.Size[1]*z)
}

// Volume is the read-only view of a scalar volume the engine needs.
type Volume interface {
	Len() int
	At(i int) float64
	Geometry() Geometry
}

// Values returns an owned copy of every voxel value in index order.
func Values(v Volume) []float64 {
	if v == nil {
		return nil
	}
	if fv, ok := v.(*Float64Volume); ok {
		out := make([]float64, len(fv.Data))
		copy(out, fv.Data)
		return out
	}

	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.At(i)
	}
	return out
}

// Float64Volume is a dense volume of float64 voxels stored in index order.
type Float64Volume struct {
	Geom Geometry
	Data []float64
}

// NewFloat64Volume wraps data with the given geometry. The length of data
// must match the geometry's voxel count.
func NewFloat64Volume(geom Geometry, data []float64) (*Float64Volume, error) {
	if geom.NumVoxels() != len(data) {
		return nil, fmt.Errorf("volume size %v holds %d voxels, got %d values", geom.Size, geom.NumVoxels(), len(data))
	}
	return &Float64Volume{Geom: geom, Data: data}, nil
}

func (fv *Float64Volume) Len() int {
	return len(fv.Data)
}

func (fv *Float64Volume) At(i int) float64 {
	return fv.Data[i]
}

func (fv *Float64Volume) Geometry() Geometry {
	return fv.Geom
}

// Float32Volume stores voxels as float32, the usual on-disk PET type.
type Float32Volume struct {
	Geom Geometry
	Data []float32
}

func (fv *Float32Volume) Len() int {
	return len(fv.Data)
}

func (fv *Float32Volume) At(i int) float64 {
	return float64(fv.Data[i])
}

func (fv *Float32Volume) Geometry() Geometry {
	return fv.Geom
}

// RGBVolume is the false-colour output: three bytes per voxel, in the same
// index order as the scalar volume it was produced from.
type RGBVolume struct {
	Geom Geometry
	Pix  []uint8
}

// NewRGBVolume allocates a zeroed RGB volume with the given geometry.
func NewRGBVolume(geom Geometry) *RGBVolume {
	return &RGBVolume{Geom: geom, Pix: make([]uint8, 3*geom.NumVoxels())}
}

func (rv *RGBVolume) Len() int {
	return len(rv.Pix) / 3
}

func (rv *RGBVolume) At(i int) RGB {
	return RGB{rv.Pix[3*i], rv.Pix[3*i+1], rv.Pix[3*i+2]}
}

func (rv *RGBVolume) Set(i int, c RGB) {
	rv.Pix[3*i] = c.R
	rv.Pix[3*i+1] = c.G
	rv.Pix[3*i+2] = c.B
}

func (rv *RGBVolume) Geometry() Geometry {
	return rv.Geom
}

// minMax scans v once, skipping NaN and infinite voxels. ok is false when
// no voxel is finite.
func minMax(v Volume) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for i := 0; i < v.Len(); i++ {
		x := v.At(i)
		if !isFinite(x) {
			continue
		}
		ok = true
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max, ok
}
