package imagegrab

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Transform runs the thumbnail chain: ResizeToHeight, CropSquare and, when
// cfg.OverlayText is non-empty, Overlay. img is not modified; the caller
// should drop its reference once the result is in hand.
func Transform(img image.Image, cfg TransformConfig) *image.NRGBA {
	size := cfg.TargetSize
	if size <= 0 {
		size = DefaultTargetSize
	}

	out := CropSquare(ResizeToHeight(img, size), size)
	if cfg.OverlayText != "" {
		out = Overlay(out, cfg.OverlayText)
	}
	return out
}

// ResizeToHeight scales img so its height equals height, keeping the aspect
// ratio (width rounded to the nearest pixel, at least 1). Pixels are
// area-averaged; alpha is carried through, not flattened.
func ResizeToHeight(img image.Image, height int) *image.NRGBA {
	b := img.Bounds()
	if b.Empty() || height <= 0 {
		return &image.NRGBA{}
	}
	width := int(math.Round(float64(b.Dx()) * float64(height) / float64(b.Dy())))
	if width < 1 {
		width = 1
	}
	return imaging.Resize(img, width, height, imaging.Box)
}

// CropSquare extracts a size x size window anchored at the top edge and
// centred horizontally. When img is narrower or shorter than size the
// window starts at the left/top edge and the uncovered area is fully
// transparent.
func CropSquare(img image.Image, size int) *image.NRGBA {
	if size <= 0 {
		return &image.NRGBA{}
	}
	b := img.Bounds()
	offX := max(0, (b.Dx()-size)/2)

	window := image.Rect(offX, 0, offX+size, size).Add(b.Min)
	cropped := imaging.Crop(img, window)
	if cropped.Bounds().Dx() == size && cropped.Bounds().Dy() == size {
		return cropped
	}

	canvas := imaging.New(size, size, color.NRGBA{})
	return imaging.Paste(canvas, cropped, image.Point{})
}
