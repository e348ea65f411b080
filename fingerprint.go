package imagegrab

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
)

const (
	// FingerprintBits is the length of every fingerprint produced by Hash.
	FingerprintBits = 64

	// MaxDistance is returned by Distance for fingerprints that cannot be compared.
	MaxDistance = math.MaxInt

	hashGridWidth  = 9
	hashGridHeight = 8
)

// Fingerprint is an immutable difference hash. Bits are ordered row-major,
// bit i stored at position 63-(i%64) of word i/64.
type Fingerprint struct {
	h *goimagehash.ExtImageHash
}

// NewFingerprint builds a fingerprint of the given bit length from packed
// words. bits is clamped to [0, 64*len(words)].
func NewFingerprint(words []uint64, bits int) Fingerprint {
	bits = min(max(bits, 0), 64*len(words))
	cp := make([]uint64, len(words))
	copy(cp, words)
	return Fingerprint{h: goimagehash.NewExtImageHash(cp, goimagehash.DHash, bits)}
}

// ParseFingerprint parses a string of '0' and '1' characters, as produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	words := make([]uint64, (len(s)+63)/64)
	for i, c := range s {
		switch c {
		case '1':
			words[i/64] |= 1 << (63 - uint(i%64))
		case '0':
		default:
			return Fingerprint{}, fmt.Errorf("imagegrab: invalid fingerprint character %q at %d", c, i)
		}
	}
	return NewFingerprint(words, len(s)), nil
}

// Len returns the number of bits in f.
func (f Fingerprint) Len() int {
	if f.h == nil {
		return 0
	}
	return f.h.Bits()
}

// Words returns a copy of the packed bit words.
func (f Fingerprint) Words() []uint64 {
	if f.h == nil {
		return nil
	}
	src := f.h.GetHash()
	out := make([]uint64, len(src))
	copy(out, src)
	return out
}

// Bit reports whether bit i is set.
func (f Fingerprint) Bit(i int) bool {
	if i < 0 || i >= f.Len() {
		return false
	}
	return f.h.GetHash()[i/64]&(1<<(63-uint(i%64))) != 0
}

// String renders f as a run of '0'/'1' characters.
func (f Fingerprint) String() string {
	var b strings.Builder
	b.Grow(f.Len())
	for i := range f.Len() {
		if f.Bit(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Hash computes the 64-bit difference hash of img. The image is resampled
// with an area-averaging filter to a 9x8 grid; each bit records whether a
// pixel is strictly brighter than its right-hand neighbour.
func Hash(img image.Image) (Fingerprint, error) {
	if img == nil || img.Bounds().Empty() {
		return Fingerprint{}, ErrEmptyImage
	}

	grid := imaging.Resize(img, hashGridWidth, hashGridHeight, imaging.Box)

	var bits uint64
	idx := 0
	for y := range hashGridHeight {
		for x := range hashGridWidth - 1 {
			if luminance(grid, x, y) > luminance(grid, x+1, y) {
				bits |= 1 << (63 - uint(idx))
			}
			idx++
		}
	}
	return Fingerprint{h: goimagehash.NewExtImageHash([]uint64{bits}, goimagehash.DHash, FingerprintBits)}, nil
}

// luminance returns the Rec. 601 luma of the non-premultiplied pixel at (x, y).
func luminance(img *image.NRGBA, x, y int) float64 {
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+3 : i+3]
	return 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
}

// Distance returns the Hamming distance between a and b, or MaxDistance when
// their lengths differ or either is empty.
func Distance(a, b Fingerprint) int {
	if a.Len() == 0 || a.Len() != b.Len() {
		return MaxDistance
	}
	d, err := a.h.Distance(b.h)
	if err != nil {
		return MaxDistance
	}
	return d
}
