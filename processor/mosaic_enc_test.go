package processor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/nci/voxrgb/utils"
	"golang.org/x/image/tiff"
)

func testRGBVolume() *utils.RGBVolume {
	rv := utils.NewRGBVolume(utils.NewGeometry(2, 3, 5))
	for z := 0; z < 5; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 2; x++ {
				rv.Set(rv.Geom.Index(x, y, z), utils.RGB{R: uint8(x), G: uint8(y), B: uint8(z)})
			}
		}
	}
	return rv
}

func TestSliceImage(t *testing.T) {
	rv := testRGBVolume()
	img := SliceImage(rv, 4)
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 3 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if c := img.RGBAAt(1, 2); c != (color.RGBA{1, 2, 4, 0xff}) {
		t.Errorf("pixel (1,2) = %v", c)
	}
}

func TestMosaic(t *testing.T) {
	rv := testRGBVolume()

	img := Mosaic(rv, 0)
	// 5 slices on a 3x2 grid
	if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 6 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if c := img.RGBAAt(1, 4); c != (color.RGBA{1, 1, 3, 0xff}) {
		t.Errorf("slice 3 pixel (1,1) = %v", c)
	}
	if c := img.RGBAAt(5, 5); c.A != 0 {
		t.Errorf("unused grid cell should stay transparent, got %v", c)
	}

	img = Mosaic(rv, 10)
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 3 {
		t.Errorf("columns should be capped by the slice count, got %v", img.Bounds())
	}
}

func TestScaleToWidth(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	scaled := ScaleToWidth(img, 10)
	if scaled.Bounds().Dx() != 10 || scaled.Bounds().Dy() != 5 {
		t.Errorf("unexpected bounds %v", scaled.Bounds())
	}
	if ScaleToWidth(img, 0) != image.Image(img) {
		t.Errorf("width 0 should keep the image")
	}
}

func TestLegendImage(t *testing.T) {
	img := LegendImage(utils.Gray, 256, 4)
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 4 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	for _, x := range []int{0, 100, 255} {
		if c := img.RGBAAt(x, 3); int(c.R) != x || c.G != c.R || c.B != c.R {
			t.Errorf("legend column %d = %v", x, c)
		}
	}
	if LegendImage(utils.Gray, 0, 4).Bounds().Dx() != 0 {
		t.Errorf("expected an empty legend")
	}
}

func TestEncodeImage(t *testing.T) {
	img := LegendImage(utils.Hot, 16, 2)
	for _, format := range []string{"png", "TIFF"} {
		var buf bytes.Buffer
		if err := EncodeImage(&buf, img, format); err != nil {
			t.Errorf("%s: %v", format, err)
			continue
		}

		var decoded image.Image
		var err error
		if format == "png" {
			decoded, err = png.Decode(&buf)
		} else {
			decoded, err = tiff.Decode(&buf)
		}
		if err != nil {
			t.Errorf("%s: decode failed: %v", format, err)
			continue
		}
		r, g, b, _ := decoded.At(15, 1).RGBA()
		if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
			t.Errorf("%s: last legend column should be white", format)
		}
	}

	if err := EncodeImage(&bytes.Buffer{}, img, "gif"); err == nil {
		t.Errorf("expected an error for an unsupported format")
	}
}

func TestWritePreview(t *testing.T) {
	dir, err := ioutil.TempDir("", "voxrgb")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "preview.png")
	if err := WritePreview(path, testRGBVolume(), 5, 20); err != nil {
		t.Fatalf("WritePreview failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open preview: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("failed to decode preview: %v", err)
	}
	if cfg.Width != 20 || cfg.Height != 6 {
		t.Errorf("preview is %dx%d, expected 20x6", cfg.Width, cfg.Height)
	}
}
