package imagegrab

import (
	"context"
	"fmt"
	"image"
	"log/slog"
)

// Outcome is the fate of a single candidate image.
type Outcome int

const (
	OutcomeAccepted    Outcome = iota // hashed, unique, large enough, stored
	OutcomeFetchFailed                // download or decode failed
	OutcomeDuplicate                  // near-identical to an earlier accepted image
	OutcomeUndersized                 // below Options.MinWidth / MinHeight
	OutcomeStoreFailed                // transform ok, Store.Save failed
	OutcomeFiltered                   // URL rejected by SkipLogoURLs / SkipStockImages
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeFetchFailed:
		return "fetch_failed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeUndersized:
		return "undersized"
	case OutcomeStoreFailed:
		return "store_failed"
	case OutcomeFiltered:
		return "filtered"
	default:
		return "unknown"
	}
}

// CandidateResult records what happened to one candidate URL.
type CandidateResult struct {
	URL         string
	Outcome     Outcome
	Fingerprint Fingerprint  // zero for fetch failures and filtered URLs
	Width       int          // source dimensions, when decoded
	Height      int          //
	Ref         string       // store reference, for OutcomeAccepted
	Attribution *Attribution // credit metadata, for OutcomeAccepted (may be nil)
	License     License      // usage-rights verdict, for OutcomeAccepted
	Err         error        // cause, for OutcomeFetchFailed / OutcomeStoreFailed
}

// Stats counts candidates per outcome.
type Stats struct {
	Seen        int
	Accepted    int
	Duplicates  int
	Undersized  int
	FetchFailed int
	StoreFailed int
	Filtered    int
}

func (s *Stats) add(o Outcome) {
	s.Seen++
	switch o {
	case OutcomeAccepted:
		s.Accepted++
	case OutcomeDuplicate:
		s.Duplicates++
	case OutcomeUndersized:
		s.Undersized++
	case OutcomeFetchFailed:
		s.FetchFailed++
	case OutcomeStoreFailed:
		s.StoreFailed++
	case OutcomeFiltered:
		s.Filtered++
	}
}

// Result is the outcome of one session. Refs holds exactly Accepted entries,
// in candidate order.
type Result struct {
	Accepted    int
	Refs        []string
	Candidates  []CandidateResult
	Stats       Stats
	PageLicense string // CC license URL declared by the source page (Process only)
}

// fetched is a downloaded and decoded candidate, or the reason it is not.
type fetched struct {
	data     []byte
	img      image.Image
	err      error
	filtered bool
	token    bool // holds a prefetch worker slot
}

// Run processes candidate URLs in order with a fresh duplicate tracker:
// fetch+decode, fingerprint, duplicate check, dimension check, record,
// transform, store. A failing candidate is skipped, never fatal, so Run
// has no error return; inspect Result.Candidates for per-URL outcomes.
//
// Invalid Options fields fall back to their defaults one by one; Process
// rejects them instead.
func (cfg *Config) Run(ctx context.Context, urls []string, opts Options) *Result {
	return cfg.run(ctx, urls, opts, "")
}

func (cfg *Config) run(ctx context.Context, urls []string, opts Options, pageLicense string) *Result {
	cfg.defaults()
	opts = opts.withDefaults()

	tracker := NewDuplicateTracker(cfg.DedupThreshold)
	tc := TransformConfig{TargetSize: cfg.TargetSize, OverlayText: opts.OverlayText}
	res := &Result{Candidates: make([]CandidateResult, 0, len(urls)), PageLicense: pageLicense}

	next := cfg.sequentialFetch(ctx, urls)
	if cfg.FetchWorkers > 1 && len(urls) > 1 {
		next = cfg.prefetch(ctx, urls, cfg.FetchWorkers)
	}

	for i, u := range urls {
		f := next(i)
		cr := cfg.processOne(ctx, u, f, tracker, opts, tc)
		if cr.Outcome == OutcomeAccepted {
			cr.License = AssessLicense(u, pageLicense, cr.Attribution, cfg.ExtraStockDomains)
		}
		res.Candidates = append(res.Candidates, cr)
		res.Stats.add(cr.Outcome)
		if cr.Outcome == OutcomeAccepted {
			res.Refs = append(res.Refs, cr.Ref)
			res.Accepted++
		}
		if cfg.OnCandidate != nil {
			cfg.OnCandidate(cr)
		}
	}

	slog.Debug("imagegrab: run finished",
		"seen", res.Stats.Seen,
		"accepted", res.Stats.Accepted,
		"duplicates", res.Stats.Duplicates,
		"undersized", res.Stats.Undersized,
		"fetch_failed", res.Stats.FetchFailed,
	)
	return res
}

// processOne applies the gates to one fetched candidate. The order matters:
// duplicates are checked before dimensions, and only candidates passing
// both are recorded.
func (cfg *Config) processOne(ctx context.Context, u string, f fetched, tracker *DuplicateTracker, opts Options, tc TransformConfig) CandidateResult {
	cr := CandidateResult{URL: u}

	switch {
	case f.filtered:
		cr.Outcome = OutcomeFiltered
		slog.Debug("imagegrab: url filtered", "url", u)
		return cr
	case f.err != nil:
		cr.Outcome = OutcomeFetchFailed
		cr.Err = f.err
		slog.Debug("imagegrab: fetch failed", "url", u, "error", f.err.Error())
		return cr
	}

	b := f.img.Bounds()
	cr.Width, cr.Height = b.Dx(), b.Dy()

	fp, err := Hash(f.img)
	if err != nil {
		cr.Outcome = OutcomeFetchFailed
		cr.Err = err
		return cr
	}
	cr.Fingerprint = fp

	if tracker.IsDuplicate(fp) {
		cr.Outcome = OutcomeDuplicate
		slog.Debug("imagegrab: dedup rejected", "url", u, "hash", fp.String())
		return cr
	}

	if cr.Width < opts.MinWidth || cr.Height < opts.MinHeight {
		cr.Outcome = OutcomeUndersized
		slog.Debug("imagegrab: too small", "url", u,
			"width", cr.Width, "height", cr.Height,
			"min_width", opts.MinWidth, "min_height", opts.MinHeight)
		return cr
	}

	tracker.Record(fp)

	ref, err := cfg.transformAndSave(ctx, f.img, tc)
	if err != nil {
		cr.Outcome = OutcomeStoreFailed
		cr.Err = err
		slog.Warn("imagegrab: store failed", "url", u, "error", err.Error())
		return cr
	}

	cr.Outcome = OutcomeAccepted
	cr.Ref = ref
	cr.Attribution = ExtractAttribution(f.data)
	return cr
}

// transformAndSave builds the thumbnail and hands it to the Store. A panic
// in either step becomes an error so the session moves on to the next
// candidate.
func (cfg *Config) transformAndSave(ctx context.Context, img image.Image, tc TransformConfig) (ref string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if cfg.OnPanic != nil {
				cfg.OnPanic("imageStore", r)
			}
			err = fmt.Errorf("imagegrab: panic while storing: %v", r)
		}
	}()

	if cfg.Store == nil {
		return "", ErrNoStore
	}
	return cfg.Store.Save(ctx, Transform(img, tc))
}

// fetchOne downloads and decodes a candidate. Recovers from panics in the
// collaborators so one hostile image cannot take down the session.
func (cfg *Config) fetchOne(ctx context.Context, u string) (f fetched) {
	defer func() {
		if r := recover(); r != nil {
			if cfg.OnPanic != nil {
				cfg.OnPanic("imageFetch", r)
			}
			f = fetched{err: fmt.Errorf("imagegrab: panic while fetching: %v", r)}
		}
	}()

	if cfg.SkipLogoURLs && IsLogoOrBanner(u) {
		return fetched{filtered: true}
	}
	if cfg.SkipStockImages && IsStockURL(u, cfg.ExtraStockDomains) {
		return fetched{filtered: true}
	}

	data, err := cfg.Fetcher.Fetch(ctx, u)
	if err != nil {
		return fetched{err: err}
	}
	img, err := cfg.Decoder.Decode(data)
	if err != nil {
		return fetched{err: err}
	}
	if img == nil || img.Bounds().Empty() {
		return fetched{err: ErrEmptyImage}
	}
	return fetched{data: data, img: img}
}

func (cfg *Config) sequentialFetch(ctx context.Context, urls []string) func(int) fetched {
	return func(i int) fetched {
		return cfg.fetchOne(ctx, urls[i])
	}
}

// prefetch fetches up to workers candidates ahead of the consumer. Each
// result lands in its own slot so the caller still consumes them in input
// order; a worker slot is freed only once its result has been consumed,
// which bounds the number of decoded images held in memory.
func (cfg *Config) prefetch(ctx context.Context, urls []string, workers int) func(int) fetched {
	slots := make([]chan fetched, len(urls))
	for i := range slots {
		slots[i] = make(chan fetched, 1)
	}
	sem := make(chan struct{}, workers)

	go func() {
		for i, u := range urls {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				for _, s := range slots[i:] {
					s <- fetched{err: ctx.Err()}
				}
				return
			}
			go func() {
				f := cfg.fetchOne(ctx, u)
				f.token = true
				slots[i] <- f
			}()
		}
	}()

	return func(i int) fetched {
		f := <-slots[i]
		if f.token {
			<-sem
		}
		return f
	}
}
