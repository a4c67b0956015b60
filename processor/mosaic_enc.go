package processor

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/nci/voxrgb/utils"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// SliceImage returns axial slice z of rv. Row 0 of the image is the first
// y row of the volume.
func SliceImage(rv *utils.RGBVolume, z int) *image.RGBA {
	size := rv.Geom.Size
	tile := image.NewRGBA(image.Rect(0, 0, size[0], size[1]))
	var start int
	for y := 0; y < size[1]; y++ {
		for x := 0; x < size[0]; x++ {
			i := rv.Geom.Index(x, y, z)
			start = tile.PixOffset(x, y)
			tile.Pix[start] = rv.Pix[3*i]
			tile.Pix[start+1] = rv.Pix[3*i+1]
			tile.Pix[start+2] = rv.Pix[3*i+2]
			tile.Pix[start+3] = 0xff
		}
	}
	return tile
}

// Mosaic lays every axial slice of rv out on a grid with the given number
// of columns; columns <= 0 picks a near-square grid.
func Mosaic(rv *utils.RGBVolume, columns int) *image.RGBA {
	size := rv.Geom.Size
	nz := size[2]
	if nz == 0 || size[0] == 0 || size[1] == 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	if columns <= 0 {
		columns = int(math.Ceil(math.Sqrt(float64(nz))))
	}
	if columns > nz {
		columns = nz
	}
	rows := (nz + columns - 1) / columns

	dst := image.NewRGBA(image.Rect(0, 0, columns*size[0], rows*size[1]))
	for z := 0; z < nz; z++ {
		offX := (z % columns) * size[0]
		offY := (z / columns) * size[1]
		tile := SliceImage(rv, z)
		draw.Draw(dst, image.Rect(offX, offY, offX+size[0], offY+size[1]), tile, image.Point{}, draw.Src)
	}
	return dst
}

// ScaleToWidth resamples img to width keeping its aspect ratio.
func ScaleToWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() == 0 || b.Dx() == width {
		return img
	}
	height := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodeImage writes img as "png" or "tiff".
func EncodeImage(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(format) {
	case "png":
		return png.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// WriteImage encodes img to path, choosing the format from the extension.
func WriteImage(path string, img image.Image) error {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	err = EncodeImage(f, img, format)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// WritePreview stores a mosaic of rv scaled to width.
func WritePreview(path string, rv *utils.RGBVolume, columns, width int) error {
	return WriteImage(path, ScaleToWidth(Mosaic(rv, columns), width))
}
