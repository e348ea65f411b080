package imagegrab

import (
	"image"
	"image/color"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	minTextScale  = 2
	maxTextScale  = 5
	textMargin    = 5  // minimum left edge of the text
	textBaseline  = 10 // gap between text bottom and image bottom
	bandPadding   = 5  // band starts this far above the text
	bandOpacity   = 128
	refTargetSize = 200 // edge length the point sizes below are tuned for
)

var (
	overlayFontOnce sync.Once
	overlayFont     *opentype.Font
	overlayFontErr  error
)

func loadOverlayFont() (*opentype.Font, error) {
	overlayFontOnce.Do(func() {
		overlayFont, overlayFontErr = opentype.Parse(gobold.TTF)
	})
	return overlayFont, overlayFontErr
}

// textScale picks a scale between minTextScale and maxTextScale; every ten
// characters of text drop the scale by one step.
func textScale(text string) int {
	return min(maxTextScale, max(minTextScale, 6-utf8.RuneCountInString(text)/10))
}

// pointSize maps a text scale to a font size for an image of the given edge.
func pointSize(scale, edge int) float64 {
	return float64(3*scale+4) * float64(edge) / refTargetSize
}

// Overlay returns a copy of img with a semi-transparent dark band along the
// bottom and text drawn in white, centred horizontally with a 5px minimum
// left margin. If the font cannot be loaded the copy is returned untouched.
func Overlay(img image.Image, text string) *image.NRGBA {
	dst := imaging.Clone(img)
	if text == "" || dst.Bounds().Empty() {
		return dst
	}
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()

	f, err := loadOverlayFont()
	if err != nil {
		slog.Warn("imagegrab: overlay font unavailable", "error", err.Error())
		return dst
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    pointSize(textScale(text), h),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		slog.Warn("imagegrab: overlay face", "error", err.Error())
		return dst
	}
	defer face.Close()

	metrics := face.Metrics()
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()

	x := max(textMargin, (w-textWidth)/2)
	y := h - textHeight - textBaseline

	band := image.Rect(0, y-bandPadding, w, h).Intersect(dst.Bounds())
	xdraw.Draw(dst, band, image.NewUniform(color.NRGBA{A: bandOpacity}), image.Point{}, xdraw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(x, y+metrics.Ascent.Ceil()),
	}
	d.DrawString(text)
	return dst
}
