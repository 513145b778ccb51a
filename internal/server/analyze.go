package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/imagevec"
	"github.com/ca-srg/prodsearch/internal/logger"
	"github.com/ca-srg/prodsearch/internal/metrics"
	"github.com/ca-srg/prodsearch/internal/search"
	"github.com/ca-srg/prodsearch/internal/types"
)

type analyzeResponse struct {
	Results types.DisplayPayload `json:"results"`
}

// handleAnalyze serves POST /analyze: multipart field q plus an optional file
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), s.logger)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_form", "could not parse multipart form")
		return
	}

	query := strings.TrimSpace(r.FormValue("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "form field q is required")
		return
	}

	req := search.Request{Query: query}
	upload, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_file", "could not read uploaded file")
		return
	}
	if upload != nil {
		req.Image = upload
	}

	ctx := metrics.WithSurface(r.Context(), metrics.SurfaceHTTP)
	resp, err := s.runner.Run(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, "missing_query", "form field q is required")
		case errors.Is(err, search.ErrSearchUnavailable):
			log.Warn("search unavailable", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "search_unavailable", "search is temporarily unavailable")
		default:
			log.Error("analyze failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
		}
		return
	}

	observeOutcome(metrics.SurfaceHTTP, resp)
	writeJSON(w, http.StatusOK, analyzeResponse{Results: resp.Display})
}

// readUpload returns nil when no file part was sent
func readUpload(r *http.Request) (*imagevec.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	contentType := firstNonEmpty(header.Header.Get("Content-Type"), http.DetectContentType(data))
	return &imagevec.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func observeOutcome(surface metrics.Surface, resp *search.Response) {
	if resp == nil || resp.Outcome == nil {
		return
	}
	searchOutcomesTotal.WithLabelValues(string(surface), string(resp.Outcome.Strategy), string(resp.Display.Kind)).Inc()
}
