package utils

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/kshedden/gonpy"
	"gopkg.in/yaml.v2"
)

// GeometrySuffix is appended to a volume path to name its geometry sidecar.
const GeometrySuffix = ".geom.yaml"

type geometryDoc struct {
	Origin    []float64 `yaml:"origin"`
	Spacing   []float64 `yaml:"spacing"`
	Direction []float64 `yaml:"direction"`
}

// ReadVolume loads a 2D or 3D .npy array as a scalar volume. Geometry is
// read from the sidecar file when present; otherwise the volume gets zero
// origin, unit spacing and identity orientation.
func ReadVolume(path string) (*Float64Volume, error) {
	rdr, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("Error reading image %s: %v", path, err)
	}

	size, err := volumeSize(rdr.Shape, rdr.ColumnMajor)
	if err != nil {
		return nil, fmt.Errorf("Error reading image %s: %v", path, err)
	}

	data, err := readFloat64(rdr)
	if err != nil {
		return nil, fmt.Errorf("Error reading image %s: %v", path, err)
	}

	geom := NewGeometry(size[0], size[1], size[2])
	if err := readGeometry(path+GeometrySuffix, &geom); err != nil {
		return nil, err
	}
	return NewFloat64Volume(geom, data)
}

// volumeSize converts an array shape to an x, y, z extent. Row-major
// arrays are shaped [z, y, x]; column-major ones [x, y, z].
func volumeSize(shape []int, columnMajor bool) ([3]int, error) {
	var size [3]int
	switch len(shape) {
	case 2:
		if columnMajor {
			size = [3]int{shape[0], shape[1], 1}
		} else {
			size = [3]int{shape[1], shape[0], 1}
		}
	case 3:
		if columnMajor {
			size = [3]int{shape[0], shape[1], shape[2]}
		} else {
			size = [3]int{shape[2], shape[1], shape[0]}
		}
	default:
		return size, fmt.Errorf("expecting a 2D or 3D array, got shape %v", shape)
	}
	return size, nil
}

func readFloat64(rdr *gonpy.NpyReader) ([]float64, error) {
	switch strings.TrimLeft(rdr.Dtype, "<>|=") {
	case "f8":
		return rdr.GetFloat64()
	case "f4":
		return widen(rdr.GetFloat32())
	case "i1":
		return widen(rdr.GetInt8())
	case "u1":
		return widen(rdr.GetUint8())
	case "i2":
		return widen(rdr.GetInt16())
	case "u2":
		return widen(rdr.GetUint16())
	case "i4":
		return widen(rdr.GetInt32())
	case "u4":
		return widen(rdr.GetUint32())
	case "i8":
		return widen(rdr.GetInt64())
	case "u8":
		return widen(rdr.GetUint64())
	default:
		return nil, fmt.Errorf("unsupported dtype %q", rdr.Dtype)
	}
}

// widen converts any real slice returned by the npy reader to float64.
func widen(data interface{}, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}

	var out []float64
	switch t := data.(type) {
	case []float32:
		out = make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
	case []int8:
		out = make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
	case []uint8:
		out = make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
	case []int16:
		out = make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
	case []uint16:
		out = make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
	case []int32:
		out = make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
	case []uint32:
		out = make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
	case []int64:
		out = make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
	case []uint64:
		out = make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
	default:
		return nil, fmt.Errorf("unsupported voxel type %T", data)
	}
	return out, nil
}

// WriteVolume stores a scalar volume as a float64 .npy array shaped
// [z, y, x] with its geometry sidecar.
func WriteVolume(path string, v *Float64Volume) error {
	wtr, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("Error writing image to %s: %v", path, err)
	}
	size := v.Geom.Size
	wtr.Shape = []int{size[2], size[1], size[0]}
	if err := wtr.WriteFloat64(v.Data); err != nil {
		return fmt.Errorf("Error writing image to %s: %v", path, err)
	}
	return writeGeometry(path+GeometrySuffix, v.Geom)
}

// WriteRGBVolume stores an RGB volume as a uint8 .npy array shaped
// [z, y, x, 3] and copies its geometry to the sidecar.
func WriteRGBVolume(path string, rv *RGBVolume) error {
	wtr, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("Error writing RGB image to %s: %v", path, err)
	}
	size := rv.Geom.Size
	wtr.Shape = []int{size[2], size[1], size[0], 3}
	if err := wtr.WriteUint8(rv.Pix); err != nil {
		return fmt.Errorf("Error writing RGB image to %s: %v", path, err)
	}
	return writeGeometry(path+GeometrySuffix, rv.Geom)
}

func readGeometry(path string, geom *Geometry) error {
	raw, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("Error reading geometry %s: %v", path, err)
	}

	var doc geometryDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("Error at YAML parsing geometry %s: %v", path, err)
	}

	if err := copyExact(geom.Origin[:], doc.Origin, "origin"); err != nil {
		return fmt.Errorf("Error in geometry %s: %v", path, err)
	}
	if err := copyExact(geom.Spacing[:], doc.Spacing, "spacing"); err != nil {
		return fmt.Errorf("Error in geometry %s: %v", path, err)
	}
	if err := copyExact(geom.Direction[:], doc.Direction, "direction"); err != nil {
		return fmt.Errorf("Error in geometry %s: %v", path, err)
	}
	return nil
}

// copyExact leaves dst untouched when src is absent.
func copyExact(dst, src []float64, name string) error {
	if src == nil {
		return nil
	}
	if len(src) != len(dst) {
		return fmt.Errorf("%s needs %d values, got %d", name, len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

func writeGeometry(path string, geom Geometry) error {
	doc := geometryDoc{
		Origin:    geom.Origin[:],
		Spacing:   geom.Spacing[:],
		Direction: geom.Direction[:],
	}
	raw, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("Error writing geometry to %s: %v", path, err)
	}
	return nil
}
