package imagegrab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DownloadOpts configures a single download.
type DownloadOpts struct {
	MaxBytes     int64         // max response body size (default: Config.MaxImageBytes)
	MinBytes     int           // reject if smaller (default: 0)
	Timeout      time.Duration // per-request timeout (default: 15s)
	UserAgent    string        // override config user agent
	ContentTypes []string      // accepted Content-Type prefixes (default: imageContentTypes)
}

const (
	defaultImageMaxBytes = 20 << 20 // 20MB
	defaultPageMaxBytes  = 5 << 20  // 5MB
	maxRedirects         = 5
)

// imageContentTypes admit generic binary responses and a missing header;
// the decoder has the final say on whether the body is an image.
// An empty entry matches only a missing Content-Type, "*" matches anything.
var imageContentTypes = []string{"image/", "application/octet-stream", "binary/octet-stream", ""}

var pageContentTypes = []string{"*"}

// DownloadResult holds downloaded data.
type DownloadResult struct {
	Data     []byte
	MIMEType string
}

// Download fetches url. Tries cfg.StealthClient first (if set), falls back
// to cfg.HTTPClient. Every failure (transport error, non-200 status, rejected
// content type, short body) wraps ErrFetchFailed; when both clients fail the
// fallback client's error is returned.
func (cfg *Config) Download(ctx context.Context, url string, opts DownloadOpts) (*DownloadResult, error) {
	cfg.defaults()

	if opts.MaxBytes <= 0 {
		opts.MaxBytes = cfg.MaxImageBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultImageTimeout
	}
	if len(opts.ContentTypes) == 0 {
		opts.ContentTypes = imageContentTypes
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = cfg.UserAgent
	}

	if cfg.StealthClient != nil {
		r, err := fetchData(ctx, cfg.StealthClient, url, ua, opts)
		if err == nil {
			return r, nil
		}
		slog.Debug("imagegrab: stealth fetch failed, falling back", "url", url, "error", err.Error())
	}

	return fetchData(ctx, cfg.HTTPClient, url, ua, opts)
}

func fetchData(ctx context.Context, client *http.Client, rawURL, ua string, opts DownloadOpts) (*DownloadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", ua)

	resp, err := limitRedirects(client).Do(req) //nolint:gosec // G704: URL is caller-supplied; SSRF filtering belongs to the caller
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	// Strip MIME parameters: "image/jpeg; charset=utf-8" → "image/jpeg"
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	ct = strings.ToLower(ct)
	if !contentTypeAllowed(ct, opts.ContentTypes) {
		return nil, fmt.Errorf("%w: content type %q", ErrFetchFailed, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}
	if len(data) < opts.MinBytes {
		return nil, fmt.Errorf("%w: body is %d bytes, want at least %d", ErrFetchFailed, len(data), opts.MinBytes)
	}

	return &DownloadResult{Data: data, MIMEType: ct}, nil
}

// limitRedirects returns a shallow copy of client that stops after
// maxRedirects hops unless the caller installed its own policy.
func limitRedirects(client *http.Client) *http.Client {
	if client.CheckRedirect != nil {
		return client
	}
	c := *client
	c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.New("too many redirects")
		}
		return nil
	}
	return &c
}

func contentTypeAllowed(ct string, allowed []string) bool {
	for _, p := range allowed {
		switch {
		case p == "*":
			return true
		case p == "":
			if ct == "" {
				return true
			}
		case strings.HasPrefix(ct, p):
			return true
		}
	}
	return false
}

// FetchPage downloads the document at pageURL. Any 200 response is accepted
// whatever its Content-Type; markup that holds no images surfaces later as
// ErrNoImages.
func (cfg *Config) FetchPage(ctx context.Context, pageURL string) (string, error) {
	r, err := cfg.Download(ctx, pageURL, DownloadOpts{
		MaxBytes:     defaultPageMaxBytes,
		Timeout:      defaultPageTimeout,
		ContentTypes: pageContentTypes,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPageFetch, err)
	}
	return string(r.Data), nil
}

// HTTPFetcher is the default Fetcher: an image download through the
// Config's clients with a bounded timeout and the configured user agent.
type HTTPFetcher struct {
	cfg     *Config
	Timeout time.Duration
}

// NewHTTPFetcher returns a Fetcher that downloads images through cfg's clients.
func NewHTTPFetcher(cfg *Config, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{cfg: cfg, Timeout: timeout}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	r, err := f.cfg.Download(ctx, url, DownloadOpts{Timeout: f.Timeout})
	if err != nil {
		return nil, err
	}
	return r.Data, nil
}
