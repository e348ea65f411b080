package imagegrab

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

const (
	urlRising      = "https://example.com/a.png"
	urlFalling     = "https://example.com/b.png"
	urlRisingAgain = "https://cdn.example.com/a-copy.png"
	urlSmallStripe = "https://example.com/thumb.png"
	urlLargeStripe = "https://example.com/wide.png"
)

// fiveCandidates returns the canonical session: two distinct images, an
// exact duplicate of the first, a small image and a large image that
// shares the small one's fingerprint.
func fiveCandidates() ([]string, mapFetcher) {
	rising := encodePNG(risingImage(400, 300))
	return []string{urlRising, urlFalling, urlRisingAgain, urlSmallStripe, urlLargeStripe},
		mapFetcher{
			urlRising:      rising,
			urlFalling:     encodePNG(fallingImage(300, 300)),
			urlRisingAgain: rising,
			urlSmallStripe: encodePNG(stripedImage(50, 50)),
			urlLargeStripe: encodePNG(stripedImage(900, 450)),
		}
}

func outcomes(res *Result) []Outcome {
	out := make([]Outcome, len(res.Candidates))
	for i, c := range res.Candidates {
		out[i] = c.Outcome
	}
	return out
}

func assertOutcomes(t *testing.T, res *Result, want ...Outcome) {
	t.Helper()
	got := outcomes(res)
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d (%s): outcome %s, want %s", i, res.Candidates[i].URL, got[i], want[i])
		}
	}
}

func TestRun_FiveCandidateSession(t *testing.T) {
	t.Parallel()

	urls, fetch := fiveCandidates()
	store := &memStore{}
	cfg := &Config{Fetcher: fetch, Store: store}

	res := cfg.Run(context.Background(), urls, Options{MinWidth: 100, MinHeight: 100})

	assertOutcomes(t, res,
		OutcomeAccepted, OutcomeAccepted, OutcomeDuplicate, OutcomeUndersized, OutcomeAccepted)

	if res.Accepted != 3 {
		t.Errorf("Accepted = %d, want 3", res.Accepted)
	}
	wantRefs := []string{"mem_1.png", "mem_2.png", "mem_3.png"}
	if len(res.Refs) != len(wantRefs) {
		t.Fatalf("Refs = %v, want %v", res.Refs, wantRefs)
	}
	for i := range wantRefs {
		if res.Refs[i] != wantRefs[i] {
			t.Errorf("Refs[%d] = %s, want %s", i, res.Refs[i], wantRefs[i])
		}
	}

	want := Stats{Seen: 5, Accepted: 3, Duplicates: 1, Undersized: 1}
	if res.Stats != want {
		t.Errorf("Stats = %+v, want %+v", res.Stats, want)
	}

	for i, img := range store.images {
		if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
			t.Errorf("stored image %d is %v, want 200x200", i, b.Size())
		}
	}
}

func TestRun_CandidateDetails(t *testing.T) {
	t.Parallel()

	urls, fetch := fiveCandidates()
	cfg := &Config{Fetcher: fetch, Store: &memStore{}}
	res := cfg.Run(context.Background(), urls, Options{})

	first := res.Candidates[0]
	if first.Width != 400 || first.Height != 300 {
		t.Errorf("first candidate dims = %dx%d, want 400x300", first.Width, first.Height)
	}
	if first.Fingerprint.Len() != FingerprintBits {
		t.Errorf("first candidate fingerprint has %d bits", first.Fingerprint.Len())
	}
	if dup := res.Candidates[2]; Distance(dup.Fingerprint, first.Fingerprint) != 0 {
		t.Error("duplicate candidate fingerprint differs from the original")
	}
	if small := res.Candidates[3]; small.Width != 50 || small.Ref != "" {
		t.Errorf("undersized candidate = %+v", small)
	}
}

func TestRun_ConcurrentFetchKeepsOrder(t *testing.T) {
	t.Parallel()

	urls, fetch := fiveCandidates()

	seq := (&Config{Fetcher: fetch, Store: &memStore{}}).Run(context.Background(), urls, Options{})
	par := (&Config{Fetcher: fetch, Store: &memStore{}, FetchWorkers: 4}).Run(context.Background(), urls, Options{})

	if par.Stats != seq.Stats {
		t.Errorf("Stats with workers = %+v, sequential = %+v", par.Stats, seq.Stats)
	}
	for i := range seq.Candidates {
		if seq.Candidates[i].URL != par.Candidates[i].URL || seq.Candidates[i].Outcome != par.Candidates[i].Outcome {
			t.Errorf("candidate %d: sequential %s/%s, concurrent %s/%s", i,
				seq.Candidates[i].URL, seq.Candidates[i].Outcome,
				par.Candidates[i].URL, par.Candidates[i].Outcome)
		}
	}
}

func TestRun_StoreFailureStillRecordsFingerprint(t *testing.T) {
	t.Parallel()

	urls, fetch := fiveCandidates()
	store := &memStore{failAt: 1}
	cfg := &Config{Fetcher: fetch, Store: store}

	res := cfg.Run(context.Background(), urls, Options{})

	assertOutcomes(t, res,
		OutcomeStoreFailed, OutcomeAccepted, OutcomeDuplicate, OutcomeUndersized, OutcomeAccepted)
	if res.Accepted != 2 || len(res.Refs) != 2 {
		t.Errorf("Accepted = %d, Refs = %v, want 2 of each", res.Accepted, res.Refs)
	}
	if res.Candidates[0].Err == nil {
		t.Error("store failure has no Err")
	}
	if res.Stats.StoreFailed != 1 {
		t.Errorf("Stats.StoreFailed = %d, want 1", res.Stats.StoreFailed)
	}
}

func TestRun_NilStore(t *testing.T) {
	t.Parallel()

	urls, fetch := fiveCandidates()
	res := (&Config{Fetcher: fetch}).Run(context.Background(), urls[:1], Options{})

	assertOutcomes(t, res, OutcomeStoreFailed)
	if !errors.Is(res.Candidates[0].Err, ErrNoStore) {
		t.Errorf("Err = %v, want ErrNoStore", res.Candidates[0].Err)
	}
}

func TestRun_FetchAndDecodeFailures(t *testing.T) {
	t.Parallel()

	fetch := mapFetcher{
		"https://example.com/garbage.png": []byte("definitely not an image"),
		"https://example.com/ok.png":      encodePNG(risingImage(300, 200)),
	}
	urls := []string{
		"https://example.com/missing.png",
		"https://example.com/garbage.png",
		"https://example.com/ok.png",
	}

	res := (&Config{Fetcher: fetch, Store: &memStore{}}).Run(context.Background(), urls, Options{})

	assertOutcomes(t, res, OutcomeFetchFailed, OutcomeFetchFailed, OutcomeAccepted)
	for _, c := range res.Candidates[:2] {
		if c.Err == nil {
			t.Errorf("%s: fetch failure without Err", c.URL)
		}
		if c.Fingerprint.Len() != 0 {
			t.Errorf("%s: fetch failure has a fingerprint", c.URL)
		}
	}
}

func TestRun_SkipLogoURLs(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	png := encodePNG(risingImage(300, 200))
	fetch := FetcherFunc(func(_ context.Context, _ string) ([]byte, error) {
		calls.Add(1)
		return png, nil
	})
	cfg := &Config{Fetcher: fetch, Store: &memStore{}, SkipLogoURLs: true}

	res := cfg.Run(context.Background(), []string{
		"https://example.com/static/site-logo.png",
		"https://example.com/photos/sunset.png",
	}, Options{})

	assertOutcomes(t, res, OutcomeFiltered, OutcomeAccepted)
	if got := calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
	if res.Stats.Filtered != 1 {
		t.Errorf("Stats.Filtered = %d, want 1", res.Stats.Filtered)
	}
}

func TestRun_RecoversFetcherPanic(t *testing.T) {
	t.Parallel()

	png := encodePNG(risingImage(300, 200))
	fetch := FetcherFunc(func(_ context.Context, u string) ([]byte, error) {
		if u == "https://example.com/boom.png" {
			panic("boom")
		}
		return png, nil
	})

	var mu sync.Mutex
	var tags []string
	cfg := &Config{
		Fetcher: fetch,
		Store:   &memStore{},
		OnPanic: func(tag string, _ any) {
			mu.Lock()
			tags = append(tags, tag)
			mu.Unlock()
		},
	}

	res := cfg.Run(context.Background(), []string{
		"https://example.com/boom.png",
		"https://example.com/fine.png",
	}, Options{})

	assertOutcomes(t, res, OutcomeFetchFailed, OutcomeAccepted)
	if len(tags) != 1 || tags[0] != "imageFetch" {
		t.Errorf("OnPanic tags = %v, want [imageFetch]", tags)
	}
}

func TestRun_RecoversStorePanic(t *testing.T) {
	t.Parallel()

	urls, fetch := fiveCandidates()
	var tags []string
	cfg := &Config{
		Fetcher: fetch,
		Store:   &memStore{panicAt: 1},
		OnPanic: func(tag string, _ any) { tags = append(tags, tag) },
	}

	res := cfg.Run(context.Background(), urls, Options{})

	assertOutcomes(t, res,
		OutcomeStoreFailed, OutcomeAccepted, OutcomeDuplicate, OutcomeUndersized, OutcomeAccepted)
	if res.Candidates[0].Err == nil {
		t.Error("store panic left no Err on the candidate")
	}
	if len(tags) != 1 || tags[0] != "imageStore" {
		t.Errorf("OnPanic tags = %v, want [imageStore]", tags)
	}
}

func TestRun_OnCandidateSeesEveryURL(t *testing.T) {
	t.Parallel()

	urls, fetch := fiveCandidates()
	var seen []string
	cfg := &Config{
		Fetcher:     fetch,
		Store:       &memStore{},
		OnCandidate: func(cr CandidateResult) { seen = append(seen, cr.URL+"="+cr.Outcome.String()) },
	}

	cfg.Run(context.Background(), urls, Options{})

	want := []string{
		urlRising + "=accepted",
		urlFalling + "=accepted",
		urlRisingAgain + "=duplicate",
		urlSmallStripe + "=undersized",
		urlLargeStripe + "=accepted",
	}
	if len(seen) != len(want) {
		t.Fatalf("OnCandidate calls = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestRun_InvalidOptionsFallBackToDefaults(t *testing.T) {
	t.Parallel()

	urls, fetch := fiveCandidates()
	res := (&Config{Fetcher: fetch, Store: &memStore{}}).Run(context.Background(), urls, Options{MinWidth: -5})

	if got := res.Candidates[3].Outcome; got != OutcomeUndersized {
		t.Errorf("50x50 candidate outcome = %s, want undersized", got)
	}
}

func TestRun_InvalidFieldKeepsValidOnes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
	}{
		{"overlay too long", Options{MinWidth: 350, MinHeight: 100, OverlayText: strings.Repeat("x", 101)}},
		{"negative height", Options{MinWidth: 350, MinHeight: -1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			urls, fetch := fiveCandidates()
			store := &memStore{}
			res := (&Config{Fetcher: fetch, Store: store}).Run(context.Background(), urls, tc.opts)

			// MinWidth 350 survives, so the 300x300 image is still rejected.
			assertOutcomes(t, res,
				OutcomeAccepted, OutcomeUndersized, OutcomeDuplicate, OutcomeUndersized, OutcomeAccepted)

			// Without overlay the bottom-left pixel is the plain resized image.
			plain := Transform(risingImage(400, 300), TransformConfig{TargetSize: DefaultTargetSize})
			got := store.images[0].(*image.NRGBA).NRGBAAt(0, DefaultTargetSize-1)
			if want := plain.NRGBAAt(0, DefaultTargetSize-1); got != want {
				t.Errorf("stored pixel = %v, want %v (no overlay)", got, want)
			}
		})
	}
}

func TestRun_LargerMinimumRejectsMore(t *testing.T) {
	t.Parallel()

	urls, fetch := fiveCandidates()
	res := (&Config{Fetcher: fetch, Store: &memStore{}}).Run(context.Background(), urls, Options{MinWidth: 350, MinHeight: 100})

	// 300x300 now fails, and the undersized image is not recorded, so the
	// exact copy of the 400x300 image is still caught as a duplicate.
	assertOutcomes(t, res,
		OutcomeAccepted, OutcomeUndersized, OutcomeDuplicate, OutcomeUndersized, OutcomeAccepted)
}

func TestRun_Empty(t *testing.T) {
	t.Parallel()

	res := (&Config{Store: &memStore{}}).Run(context.Background(), nil, Options{})
	if res.Accepted != 0 || len(res.Candidates) != 0 || res.Stats.Seen != 0 {
		t.Errorf("Run(nil) = %+v, want empty result", res)
	}
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	want := map[Outcome]string{
		OutcomeAccepted:    "accepted",
		OutcomeFetchFailed: "fetch_failed",
		OutcomeDuplicate:   "duplicate",
		OutcomeUndersized:  "undersized",
		OutcomeStoreFailed: "store_failed",
		OutcomeFiltered:    "filtered",
		Outcome(99):        "unknown",
	}
	for o, s := range want {
		if o.String() != s {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), o.String(), s)
		}
	}
}

func TestRun_DecoderDecidesUntypedImages(t *testing.T) {
	t.Parallel()

	png := encodePNG(risingImage(300, 300))
	mux := http.NewServeMux()
	mux.HandleFunc("/s3/object", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(png)
	})
	mux.HandleFunc("/bare", func(w http.ResponseWriter, _ *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write(encodePNG(fallingImage(300, 300)))
	})
	mux.HandleFunc("/notes.bin", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("not an image at all"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := &Config{Store: &memStore{}, HTTPClient: srv.Client()}
	res := cfg.Run(context.Background(), []string{
		srv.URL + "/s3/object",
		srv.URL + "/bare",
		srv.URL + "/notes.bin",
	}, Options{})

	assertOutcomes(t, res, OutcomeAccepted, OutcomeAccepted, OutcomeFetchFailed)
}
