package colorservice

import (
	"fmt"
	"math"
	"strings"

	"github.com/nci/voxrgb/utils"
	"google.golang.org/protobuf/types/known/structpb"
)

// Request is the decoded form of a Convert call.
type Request struct {
	Volume   *utils.Float64Volume
	Window   utils.WindowPolicy
	Colormap string
	Stops    []utils.ColormapStop
}

// EncodeRequest builds the Struct message a client sends. Stops may be nil
// to use the named colormap.
func EncodeRequest(v *utils.Float64Volume, policy utils.WindowPolicy, colormap string, stops []utils.ColormapStop) *structpb.Struct {
	fields := geometryFields(v.Geom)
	fields["voxels"] = numberList(len(v.Data), func(i int) float64 { return v.Data[i] })
	fields["policy"] = structpb.NewStringValue(policy.Kind.String())
	fields["min"] = structpb.NewNumberValue(policy.Min)
	fields["max"] = structpb.NewNumberValue(policy.Max)
	if len(colormap) > 0 {
		fields["colormap"] = structpb.NewStringValue(colormap)
	}
	if len(stops) > 0 {
		list := make([]*structpb.Value, len(stops))
		for i, s := range stops {
			ch := [3]uint8{s.Colour.R, s.Colour.G, s.Colour.B}
			list[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
				"key": structpb.NewNumberValue(s.Key),
				"rgb": numberList(3, func(j int) float64 { return float64(ch[j]) }),
			}})
		}
		fields["stops"] = structpb.NewListValue(&structpb.ListValue{Values: list})
	}
	return &structpb.Struct{Fields: fields}
}

// DecodeRequest validates and unpacks a Convert request.
func DecodeRequest(in *structpb.Struct) (*Request, error) {
	if in == nil {
		return nil, fmt.Errorf("empty request")
	}
	fields := in.GetFields()

	geom, err := decodeGeometry(fields)
	if err != nil {
		return nil, err
	}

	voxels, err := numbers(fields, "voxels", -1)
	if err != nil {
		return nil, err
	}
	v, err := utils.NewFloat64Volume(geom, voxels)
	if err != nil {
		return nil, err
	}

	policy, err := decodePolicy(fields)
	if err != nil {
		return nil, err
	}

	req := &Request{Volume: v, Window: policy}
	if cm, found := fields["colormap"]; found {
		req.Colormap = cm.GetStringValue()
	}
	if req.Stops, err = decodeStops(fields); err != nil {
		return nil, err
	}
	return req, nil
}

func decodePolicy(fields map[string]*structpb.Value) (utils.WindowPolicy, error) {
	name := "proportion"
	if p, found := fields["policy"]; found {
		name = strings.ToLower(p.GetStringValue())
	}

	bound := func(key string, def float64) float64 {
		if v, found := fields[key]; found {
			return v.GetNumberValue()
		}
		return def
	}

	switch name {
	case "all":
		return utils.AllWindow(), nil
	case "range":
		_, hasMin := fields["min"]
		_, hasMax := fields["max"]
		if !hasMin || !hasMax {
			return utils.WindowPolicy{}, fmt.Errorf("%w: range policy needs min and max", utils.ErrInvalidWindow)
		}
		return utils.RangeWindow(bound("min", 0), bound("max", 0)), nil
	case "proportion", "":
		def := utils.DefaultWindow()
		return utils.ProportionWindow(bound("min", def.Min), bound("max", def.Max)), nil
	default:
		return utils.WindowPolicy{}, fmt.Errorf("%w: unknown policy %q", utils.ErrInvalidWindow, name)
	}
}

func decodeStops(fields map[string]*structpb.Value) ([]utils.ColormapStop, error) {
	list, found := fields["stops"]
	if !found {
		return nil, nil
	}

	var stops []utils.ColormapStop
	for i, v := range list.GetListValue().GetValues() {
		sf := v.GetStructValue().GetFields()
		key, found := sf["key"]
		if !found {
			return nil, fmt.Errorf("%w: stop %d has no key", utils.ErrInvalidColormap, i)
		}
		ch, err := numbers(sf, "rgb", 3)
		if err != nil {
			return nil, fmt.Errorf("%w: stop %d: %v", utils.ErrInvalidColormap, i, err)
		}
		var rgb [3]uint8
		for j, c := range ch {
			if c < 0 || c > 255 || c != math.Trunc(c) {
				return nil, fmt.Errorf("%w: stop %d: channel %v is not a byte", utils.ErrInvalidColormap, i, c)
			}
			rgb[j] = uint8(c)
		}
		stops = append(stops, utils.ColormapStop{Key: key.GetNumberValue(), Colour: utils.RGB{R: rgb[0], G: rgb[1], B: rgb[2]}})
	}
	return stops, nil
}

// EncodeResult builds the response message.
func EncodeResult(rv *utils.RGBVolume, w utils.Window) *structpb.Struct {
	fields := geometryFields(rv.Geom)
	fields["rgb"] = numberList(len(rv.Pix), func(i int) float64 { return float64(rv.Pix[i]) })
	fields["window_min"] = structpb.NewNumberValue(w.Min)
	fields["window_max"] = structpb.NewNumberValue(w.Max)
	return &structpb.Struct{Fields: fields}
}

// DecodeResult unpacks a response message.
func DecodeResult(out *structpb.Struct) (*utils.RGBVolume, utils.Window, error) {
	fields := out.GetFields()
	geom, err := decodeGeometry(fields)
	if err != nil {
		return nil, utils.Window{}, err
	}

	pix, err := numbers(fields, "rgb", 3*geom.NumVoxels())
	if err != nil {
		return nil, utils.Window{}, err
	}
	rv := utils.NewRGBVolume(geom)
	for i, p := range pix {
		rv.Pix[i] = uint8(p)
	}

	w := utils.Window{
		Min: fields["window_min"].GetNumberValue(),
		Max: fields["window_max"].GetNumberValue(),
	}
	return rv, w, nil
}

func geometryFields(g utils.Geometry) map[string]*structpb.Value {
	return map[string]*structpb.Value{
		"size":      numberList(3, func(i int) float64 { return float64(g.Size[i]) }),
		"origin":    numberList(3, func(i int) float64 { return g.Origin[i] }),
		"spacing":   numberList(3, func(i int) float64 { return g.Spacing[i] }),
		"direction": numberList(9, func(i int) float64 { return g.Direction[i] }),
	}
}

func decodeGeometry(fields map[string]*structpb.Value) (utils.Geometry, error) {
	size, err := numbers(fields, "size", 3)
	if err != nil {
		return utils.Geometry{}, err
	}
	for _, s := range size {
		if s < 0 || s != math.Trunc(s) {
			return utils.Geometry{}, fmt.Errorf("invalid size %v", size)
		}
	}
	geom := utils.NewGeometry(int(size[0]), int(size[1]), int(size[2]))

	optional := []struct {
		key string
		dst []float64
	}{
		{"origin", geom.Origin[:]},
		{"spacing", geom.Spacing[:]},
		{"direction", geom.Direction[:]},
	}
	for _, o := range optional {
		if _, found := fields[o.key]; !found {
			continue
		}
		vals, err := numbers(fields, o.key, len(o.dst))
		if err != nil {
			return utils.Geometry{}, err
		}
		copy(o.dst, vals)
	}
	return geom, nil
}

func numberList(n int, at func(int) float64) *structpb.Value {
	vals := make([]*structpb.Value, n)
	for i := range vals {
		vals[i] = structpb.NewNumberValue(at(i))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

// numbers reads a list of numbers; want < 0 accepts any length.
func numbers(fields map[string]*structpb.Value, key string, want int) ([]float64, error) {
	v, found := fields[key]
	if !found {
		return nil, fmt.Errorf("missing field %q", key)
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, fmt.Errorf("field %q is not a list", key)
	}

	vals := list.ListValue.GetValues()
	if want >= 0 && len(vals) != want {
		return nil, fmt.Errorf("field %q needs %d values, got %d", key, want, len(vals))
	}
	out := make([]float64, len(vals))
	for i, e := range vals {
		num, ok := e.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("field %q[%d] is not a number", key, i)
		}
		out[i] = num.NumberValue
	}
	return out, nil
}
