package imagegrab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
)

// risingImage brightens left to right, so every dHash bit is 0.
func risingImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8(x * 255 / max(1, w-1))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// fallingImage darkens left to right, so every dHash bit is 1.
func fallingImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8(255 - x*255/max(1, w-1))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// stripedImage has nine vertical bands alternating white/black.
func stripedImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8(0)
			if (x*9/w)%2 == 0 {
				v = 255
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encodePNG: " + err.Error())
	}
	return buf.Bytes()
}

// makeJPEG returns a minimal valid JPEG of the given dimensions.
func makeJPEG(w, h int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solidImage(w, h, color.NRGBA{R: 100, G: 149, B: 237, A: 255}), nil); err != nil {
		panic("makeJPEG: " + err.Error())
	}
	return buf.Bytes()
}

// mapFetcher serves canned bytes per URL; unknown URLs fail.
type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	data, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("no such url: %s", url)
	}
	return data, nil
}

// memStore keeps saved images in memory.
type memStore struct {
	mu      sync.Mutex
	images  []image.Image
	failAt  int // 1-based Save call that fails; 0 = never
	panicAt int // 1-based Save call that panics; 0 = never
	calls   int
	deleted []string
}

func (s *memStore) Save(_ context.Context, img image.Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.panicAt == s.calls {
		panic("store exploded")
	}
	if s.failAt == s.calls {
		return "", errors.New("disk full")
	}
	s.images = append(s.images, img)
	return fmt.Sprintf("mem_%d.png", len(s.images)), nil
}

func (s *memStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, name)
	return nil
}
