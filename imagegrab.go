package imagegrab

import (
	"context"
	"image"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// DefaultTargetSize is the edge length of the square thumbnails produced.
	DefaultTargetSize = 200

	// DefaultMinDimension is used for Options.MinWidth / MinHeight when unset.
	DefaultMinDimension = 100

	// DefaultUserAgent is sent with every page and image request.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (compatible; go-imagegrab/1.0)"

	// DefaultMaxPixels caps width*height of a decoded candidate (40 MP).
	DefaultMaxPixels = 40_000_000

	// maxOverlayRunes bounds the overlay text accepted per session.
	maxOverlayRunes = 100
)

// Fetcher retrieves raw bytes for a URL. Any error is treated uniformly as
// a failed candidate by the pipeline.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Decoder turns raw bytes into a decoded raster.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// Store persists a finished thumbnail and returns an opaque reference to it.
type Store interface {
	Save(ctx context.Context, img image.Image) (string, error)
	Delete(name string) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(data []byte) (image.Image, error)

func (f DecoderFunc) Decode(data []byte) (image.Image, error) { return f(data) }

// Config holds all dependencies injected by the consumer.
type Config struct {
	Fetcher       Fetcher      // optional: image fetcher (nil = HTTPFetcher over HTTPClient)
	Decoder       Decoder      // optional: nil = DecodeImage with MaxPixels guard
	Store         Store        // required for Run / Process / Delete
	StealthClient *http.Client // optional: tried first for downloads
	HTTPClient    *http.Client // optional: default http client (nil = http.DefaultClient)
	UserAgent     string       // default: DefaultUserAgent

	TargetSize     int // default: DefaultTargetSize (200)
	DedupThreshold int // default: DefaultDedupThreshold (10)

	// FetchWorkers > 1 fetches and decodes candidates ahead of the
	// hash/dedup/transform loop. Results are still consumed in input order.
	FetchWorkers int

	MaxImageBytes int64 // default: defaultImageMaxBytes
	MaxPixels     int   // default: DefaultMaxPixels

	// SkipLogoURLs rejects candidates whose URL looks like a logo, icon or
	// banner before downloading them.
	SkipLogoURLs bool

	// SkipStockImages rejects candidates hosted by stock agencies
	// (StockDomains plus ExtraStockDomains) before downloading them.
	SkipStockImages   bool
	ExtraStockDomains []string

	// Optional callbacks for metrics/logging.
	OnCandidate func(CandidateResult)
	OnPanic     func(tag string, r any)

	once sync.Once
}

// Options are the per-session request parameters.
// Zero values mean "use defaults": MinWidth/MinHeight 0 = DefaultMinDimension.
type Options struct {
	MinWidth    int
	MinHeight   int
	OverlayText string
}

// TransformConfig is the immutable per-session transform setup.
type TransformConfig struct {
	TargetSize  int
	OverlayText string
}

// defaults fills zero-value fields with sensible defaults. It runs once per
// Config so concurrent sessions can share one value.
func (c *Config) defaults() {
	c.once.Do(c.fillDefaults)
}

func (c *Config) fillDefaults() {
	if c.TargetSize <= 0 {
		c.TargetSize = DefaultTargetSize
	}
	if c.DedupThreshold <= 0 {
		c.DedupThreshold = DefaultDedupThreshold
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = defaultImageMaxBytes
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = DefaultMaxPixels
	}
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = 1
	}
	if c.Fetcher == nil {
		c.Fetcher = &HTTPFetcher{cfg: c, Timeout: defaultImageTimeout}
	}
	if c.Decoder == nil {
		maxPixels := c.MaxPixels
		c.Decoder = DecoderFunc(func(data []byte) (image.Image, error) {
			return decodeLimited(data, maxPixels)
		})
	}
}

// normalize validates opts and fills defaults. Negative dimensions and
// overlay text longer than maxOverlayRunes are rejected; zero dimensions
// mean DefaultMinDimension.
func (o Options) normalize() (Options, error) {
	if o.MinWidth < 0 || o.MinHeight < 0 {
		return o, ErrInvalidOptions
	}
	if utf8.RuneCountInString(strings.TrimSpace(o.OverlayText)) > maxOverlayRunes {
		return o, ErrInvalidOptions
	}
	return o.withDefaults(), nil
}

// withDefaults replaces each out-of-range field with its default and keeps
// the valid ones: a non-positive dimension becomes DefaultMinDimension and
// overlay text over the limit is dropped.
func (o Options) withDefaults() Options {
	if o.MinWidth <= 0 {
		o.MinWidth = DefaultMinDimension
	}
	if o.MinHeight <= 0 {
		o.MinHeight = DefaultMinDimension
	}
	o.OverlayText = strings.TrimSpace(o.OverlayText)
	if utf8.RuneCountInString(o.OverlayText) > maxOverlayRunes {
		o.OverlayText = ""
	}
	return o
}

const (
	defaultImageTimeout = 15 * time.Second
	defaultPageTimeout  = 30 * time.Second
)
