// Package server is the HTTP front end: submit a page URL for ingestion,
// browse and delete stored thumbnails, and serve them as static files.
package server

import (
	"net/http"

	"github.com/anatolykoptev/go-imagegrab"
	"github.com/anatolykoptev/go-imagegrab/internal/metrics"
)

// PublicPrefix is the URL path under which stored thumbnails are served.
// Image references in responses are relative to the site root.
const PublicPrefix = "processed/"

// Options tune request handling.
type Options struct {
	MinWidth     int   // default minimum when a request omits minWidth
	MinHeight    int   // default minimum when a request omits minHeight
	MaxBodyBytes int64 // request body cap (default 1MB)
}

// Server routes HTTP requests to an ingestion pipeline and its store.
type Server struct {
	pipeline *imagegrab.Config
	store    *imagegrab.DirStore
	metrics  *metrics.Metrics
	opts     Options
}

// New returns a Server. m may be nil, in which case /metrics is not served.
func New(pipeline *imagegrab.Config, store *imagegrab.DirStore, m *metrics.Metrics, opts Options) *Server {
	if opts.MinWidth <= 0 {
		opts.MinWidth = imagegrab.DefaultMinDimension
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = imagegrab.DefaultMinDimension
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &Server{pipeline: pipeline, store: store, metrics: m, opts: opts}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("POST /api/process", s.handleProcess)
	mux.HandleFunc("POST /api/delete", s.handleDelete)
	mux.HandleFunc("GET /api/images", s.handleList)
	mux.Handle("GET /"+PublicPrefix, http.StripPrefix("/"+PublicPrefix, noDirListing(http.FileServer(http.Dir(s.store.Dir())))))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// noDirListing hides directory indexes from the file server.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
