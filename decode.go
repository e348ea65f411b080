package imagegrab

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// DecodeImage decodes PNG, JPEG, GIF or WebP data, rejecting empty rasters
// and anything above DefaultMaxPixels.
func DecodeImage(data []byte) (image.Image, error) {
	return decodeLimited(data, DefaultMaxPixels)
}

// decodeLimited reads the header first so oversized images are refused
// before their pixels are allocated.
func decodeLimited(data []byte, maxPixels int) (image.Image, error) {
	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imagegrab: decode config: %w", err)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return nil, ErrEmptyImage
	}
	if maxPixels > 0 && hdr.Width*hdr.Height > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, hdr.Width, hdr.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imagegrab: decode: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}
