package imagegrab

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned when the source page URL is missing or not http(s).
	ErrInvalidURL = errors.New("imagegrab: invalid source url")

	// ErrInvalidOptions is returned for negative minimum dimensions or oversized overlay text.
	ErrInvalidOptions = errors.New("imagegrab: invalid options")

	// ErrPageFetch is returned when the source page cannot be retrieved.
	ErrPageFetch = errors.New("imagegrab: failed to fetch page")

	// ErrNoImages is returned when the page references no candidate images.
	ErrNoImages = errors.New("imagegrab: no images found")

	// ErrNoQualifyingImages is wrapped by *NoQualifyingError.
	ErrNoQualifyingImages = errors.New("imagegrab: no qualifying images")

	// ErrNoStore is returned when Config.Store is nil.
	ErrNoStore = errors.New("imagegrab: no store configured")

	// ErrEmptyImage is returned for rasters with zero width or height.
	ErrEmptyImage = errors.New("imagegrab: empty image")

	// ErrTooLarge is returned when a candidate exceeds the pixel budget.
	ErrTooLarge = errors.New("imagegrab: image too large")

	// ErrFetchFailed is wrapped by Download and HTTPFetcher for any unusable response.
	ErrFetchFailed = errors.New("imagegrab: fetch failed")

	// ErrInvalidFilename is returned by Delete for names outside the allowlist.
	ErrInvalidFilename = errors.New("imagegrab: invalid filename")

	// ErrNotFound is returned by Delete when the file does not exist.
	ErrNotFound = errors.New("imagegrab: not found")
)

// NoQualifyingError reports that candidates were found but none survived
// the duplicate and dimension gates.
type NoQualifyingError struct {
	Found     int
	MinWidth  int
	MinHeight int
}

func (e *NoQualifyingError) Error() string {
	return fmt.Sprintf("found %d images, but none met the minimum dimensions (%dx%dpx)",
		e.Found, e.MinWidth, e.MinHeight)
}

func (e *NoQualifyingError) Unwrap() error {
	return ErrNoQualifyingImages
}
