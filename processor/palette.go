package processor

import (
	"image"

	"github.com/nci/voxrgb/utils"
)

// LegendImage draws the colormap as a horizontal colour bar, first key on
// the left and last key on the right.
func LegendImage(cm *utils.Colormap, width, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	ramp := cm.Ramp(width)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for x, c := range ramp {
		for y := 0; y < height; y++ {
			dst.SetRGBA(x, y, c)
		}
	}
	return dst
}
