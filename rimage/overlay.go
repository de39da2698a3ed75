package rimage

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// IDColor is the display color of an object id. Id 0 is black.
func IDColor(id uint8) colorful.Color {
	if id == 0 {
		return colorful.Color{}
	}
	hue := float64((int(id) * 67) % 360)
	return colorful.Hsv(hue, 0.85, 0.95)
}

// Overlay renders a frame for inspection: normalized depth in gray, object pixels in their id
// color, blended over the camera image when one is given. The camera image is resampled to
// the depth map size.
func Overlay(dm *DepthMap, mask *Mask, img image.Image) *image.RGBA {
	if img != nil && (img.Bounds().Dx() != dm.Width() || img.Bounds().Dy() != dm.Height()) {
		img = imaging.Resize(img, dm.Width(), dm.Height(), imaging.Linear)
	}
	out := image.NewRGBA(image.Rect(0, 0, dm.Width(), dm.Height()))
	lo, hi := dm.MinMax()
	span := hi - lo
	if span == 0 {
		span = 1
	}

	for row := 0; row < dm.Height(); row++ {
		for col := 0; col < dm.Width(); col++ {
			var c colorful.Color
			if id := mask.At(row, col); id > 0 {
				c = IDColor(id)
			} else if d := dm.At(row, col); d > 0 {
				g := 1 - float64((d-lo)/span)*0.8
				c = colorful.Color{R: g, G: g, B: g}
			}

			if img != nil && image.Pt(col, row).Add(img.Bounds().Min).In(img.Bounds()) {
				under, ok := colorful.MakeColor(img.At(col+img.Bounds().Min.X, row+img.Bounds().Min.Y))
				if ok {
					c = c.BlendRgb(under, 0.5)
				}
			}
			r, g, b := c.Clamped().RGB255()
			out.SetRGBA(col, row, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return out
}
