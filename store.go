package imagegrab

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Format is the encoding used for stored thumbnails.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

const jpegQuality = 85

// validFilenameRe is the allowlist for names accepted by Delete.
var validFilenameRe = regexp.MustCompile(`^[a-zA-Z0-9_\-]+\.(png|jpg|jpeg|gif|webp)$`)

// ValidFilename reports whether name is a bare file name with an allowed
// image extension.
func ValidFilename(name string) bool {
	return validFilenameRe.MatchString(name)
}

// ParseFormat maps "png", "jpg"/"jpeg" or "webp" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("imagegrab: unsupported format %q", s)
	}
}

func (f Format) ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// StoredImage describes one file in a DirStore.
type StoredImage struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// DirStore writes thumbnails into a single directory. File names combine a
// timestamp and a random component, so concurrent sessions never collide
// and no locking is needed.
type DirStore struct {
	dir    string
	format Format
}

// NewDirStore creates dir if needed and returns a store writing format.
func NewDirStore(dir string, format Format) (*DirStore, error) {
	format, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("imagegrab: create store directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("imagegrab: resolve store directory: %w", err)
	}
	return &DirStore{dir: abs, format: format}, nil
}

// Dir returns the absolute storage directory.
func (s *DirStore) Dir() string { return s.dir }

// Save encodes img and returns the generated file name.
func (s *DirStore) Save(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := newFilename(s.format)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("imagegrab: create %s: %w", name, err)
	}

	w := bufio.NewWriter(f)
	err = encode(w, img, s.format)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("imagegrab: write %s: %w", name, err)
	}
	return name, nil
}

func newFilename(f Format) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("img_%d_%s.%s", time.Now().UnixNano(), id[:16], f.ext())
}

func encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	case FormatWebP:
		return nativewebp.Encode(w, img, nil)
	default:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression))
	}
}

// Delete removes the named file. Names outside the allowlist, or resolving
// outside the store directory, are rejected before the filesystem is touched.
func (s *DirStore) Delete(name string) error {
	if !ValidFilename(name) {
		return ErrInvalidFilename
	}

	path := filepath.Join(s.dir, name)
	if rel, err := filepath.Rel(s.dir, path); err != nil || rel != name {
		return ErrInvalidFilename
	}

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("imagegrab: stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return ErrInvalidFilename
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("imagegrab: delete %s: %w", name, err)
	}
	return nil
}

// List returns the stored images, newest first.
func (s *DirStore) List() ([]StoredImage, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("imagegrab: list store: %w", err)
	}

	var out []StoredImage
	for _, e := range entries {
		if !e.Type().IsRegular() || !ValidFilename(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, StoredImage{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].Name > out[j].Name
		}
		return out[i].ModTime.After(out[j].ModTime)
	})
	return out, nil
}
