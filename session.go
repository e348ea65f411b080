package imagegrab

import (
	"context"
	"fmt"
	"log/slog"
)

// Process runs one session for sourceURL: fetch the page, discover its
// images and feed them through Run.
//
// Errors:
//   - ErrInvalidURL / ErrInvalidOptions before any network access
//   - ErrNoStore if cfg.Store is nil
//   - ErrPageFetch when the page cannot be downloaded
//   - ErrNoImages when the page references no images
//   - *NoQualifyingError (wrapping ErrNoQualifyingImages) when images were
//     found but none were accepted
func (cfg *Config) Process(ctx context.Context, sourceURL string, opts Options) (*Result, error) {
	if !validSourceURL(sourceURL) {
		return nil, ErrInvalidURL
	}
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	cfg.defaults()

	page, err := cfg.FetchPage(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	doc, base, err := parsePage(page, sourceURL)
	if err != nil {
		slog.Debug("imagegrab: html parse failed", "url", sourceURL, "error", err.Error())
		return nil, ErrNoImages
	}
	urls := ImageURLsFromDocument(doc, base)
	if len(urls) == 0 {
		return nil, ErrNoImages
	}
	slog.Debug("imagegrab: candidates discovered", "url", sourceURL, "count", len(urls))

	res := cfg.run(ctx, urls, opts, CCLicenseFromDocument(doc, base))
	if res.Accepted == 0 {
		return res, &NoQualifyingError{Found: len(urls), MinWidth: opts.MinWidth, MinHeight: opts.MinHeight}
	}
	return res, nil
}

// Delete removes a stored thumbnail by name through the configured Store.
func (cfg *Config) Delete(name string) error {
	if cfg.Store == nil {
		return ErrNoStore
	}
	if !ValidFilename(name) {
		return ErrInvalidFilename
	}
	if err := cfg.Store.Delete(name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}
