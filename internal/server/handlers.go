package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go-imagegrab"
)

// Response is the JSON envelope returned by every /api endpoint.
type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Images  []string `json:"images"`
	License string   `json:"license,omitempty"` // CC license declared by the source page
}

// processRequest accepts form fields or a JSON body with the same names.
type processRequest struct {
	Action      string `json:"action"`
	URL         string `json:"url"`
	MinWidth    int    `json:"minWidth"`
	MinHeight   int    `json:"minHeight"`
	OverlayText string `json:"overlayText"`
	Filename    string `json:"filename"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	if resp.Images == nil {
		resp.Images = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("imagegrab: write response", "error", err.Error())
	}
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Message: msg})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// decodeRequest reads a JSON body when the content type says so and form
// values otherwise. Non-numeric or non-positive dimensions read as 0.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (processRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	var req processRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("decode json: %w", err)
		}
	} else {
		if err := r.ParseMultipartForm(s.opts.MaxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, fmt.Errorf("parse form: %w", err)
		}
		req.Action = r.FormValue("action")
		req.URL = r.FormValue("url")
		req.MinWidth = formInt(r.FormValue("minWidth"))
		req.MinHeight = formInt(r.FormValue("minHeight"))
		req.OverlayText = r.FormValue("overlayText")
		req.Filename = r.FormValue("filename")
	}

	req.URL = strings.TrimSpace(req.URL)
	req.MinWidth = max(req.MinWidth, 0)
	req.MinHeight = max(req.MinHeight, 0)
	return req, nil
}

func formInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// handleProcess runs one ingestion session. A request with action=delete
// is handled as a delete.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRequest(w, r)
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Action == "delete" {
		s.deleteFile(w, req.Filename)
		return
	}

	opts := imagegrab.Options{
		MinWidth:    req.MinWidth,
		MinHeight:   req.MinHeight,
		OverlayText: req.OverlayText,
	}
	if opts.MinWidth == 0 {
		opts.MinWidth = s.opts.MinWidth
	}
	if opts.MinHeight == 0 {
		opts.MinHeight = s.opts.MinHeight
	}

	start := time.Now()
	res, err := s.pipeline.Process(r.Context(), req.URL, opts)
	status, result, resp := sessionResponse(res, err)
	if s.metrics != nil {
		s.metrics.ObserveSession(result, time.Since(start))
	}

	logArgs := []any{"url", req.URL, "result", result, "duration", time.Since(start)}
	if res != nil {
		logArgs = append(logArgs, "seen", res.Stats.Seen, "accepted", res.Stats.Accepted)
	}
	if err != nil && status >= http.StatusInternalServerError {
		slog.Warn("imagegrab: session failed", append(logArgs, "error", err.Error())...)
	} else {
		slog.Info("imagegrab: session finished", logArgs...)
	}

	writeJSON(w, status, resp)
}

// sessionResponse maps a session outcome to an HTTP status, a metrics label
// and the response envelope.
func sessionResponse(res *imagegrab.Result, err error) (int, string, Response) {
	var nq *imagegrab.NoQualifyingError
	switch {
	case err == nil:
		images := make([]string, len(res.Refs))
		for i, ref := range res.Refs {
			images[i] = PublicPrefix + ref
		}
		return http.StatusOK, "accepted", Response{
			Success: true,
			Message: fmt.Sprintf("Successfully processed %d image(s) meeting minimum dimensions", res.Accepted),
			Images:  images,
			License: res.PageLicense,
		}
	case errors.Is(err, imagegrab.ErrInvalidURL):
		return http.StatusBadRequest, "invalid", Response{Message: "Please provide a valid URL"}
	case errors.Is(err, imagegrab.ErrInvalidOptions):
		return http.StatusBadRequest, "invalid", Response{Message: "Invalid options: overlay text is limited to 100 characters"}
	case errors.Is(err, imagegrab.ErrPageFetch):
		return http.StatusBadGateway, "page_fetch_failed", Response{Message: "Failed to fetch the webpage. Please check the URL."}
	case errors.Is(err, imagegrab.ErrNoImages):
		return http.StatusUnprocessableEntity, "no_images", Response{Message: "No images found on the webpage"}
	case errors.As(err, &nq):
		return http.StatusUnprocessableEntity, "none_qualifying", Response{Message: fmt.Sprintf(
			"Found %d images, but none met the minimum dimensions (%dx%dpx)", nq.Found, nq.MinWidth, nq.MinHeight)}
	default:
		return http.StatusInternalServerError, "error", Response{Message: "Internal error"}
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRequest(w, r)
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid request")
		return
	}
	s.deleteFile(w, req.Filename)
}

// deleteFile accepts either a bare name or a "processed/<name>" reference.
func (s *Server) deleteFile(w http.ResponseWriter, name string) {
	name = strings.TrimPrefix(strings.TrimSpace(name), PublicPrefix)
	if name == "" {
		fail(w, http.StatusBadRequest, "No filename provided")
		return
	}

	err := s.pipeline.Delete(name)
	switch {
	case err == nil:
		slog.Info("imagegrab: image deleted", "name", name)
		writeJSON(w, http.StatusOK, Response{Success: true, Message: "Image deleted successfully"})
	case errors.Is(err, imagegrab.ErrInvalidFilename):
		fail(w, http.StatusBadRequest, "Failed to delete image")
	case errors.Is(err, imagegrab.ErrNotFound):
		fail(w, http.StatusNotFound, "Failed to delete image")
	default:
		slog.Warn("imagegrab: delete failed", "name", name, "error", err.Error())
		fail(w, http.StatusInternalServerError, "Failed to delete image")
	}
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	stored, err := s.store.List()
	if err != nil {
		slog.Warn("imagegrab: list failed", "error", err.Error())
		fail(w, http.StatusInternalServerError, "Failed to list images")
		return
	}
	images := make([]string, len(stored))
	for i, img := range stored {
		images[i] = PublicPrefix + img.Name
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("%d image(s)", len(images)),
		Images:  images,
	})
}
