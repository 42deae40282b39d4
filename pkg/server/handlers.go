package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/matzehuels/anchorstack/pkg/buildinfo"
	"github.com/matzehuels/anchorstack/pkg/cache"
	"github.com/matzehuels/anchorstack/pkg/document"
	errs "github.com/matzehuels/anchorstack/pkg/errors"
	"github.com/matzehuels/anchorstack/pkg/observability"
	"github.com/matzehuels/anchorstack/pkg/pipeline"
)

// Response headers set by /v1/solve.
const (
	HeaderCache   = "X-Cache"
	HeaderDocHash = "X-Doc-Hash"
)

// errorResponse is the body of every error response.
type errorResponse struct {
	Code    errs.Code `json:"code"`
	Message string    `json:"message"`
}

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

type validateResponse struct {
	Valid bool   `json:"valid"`
	Cards int    `json:"cards"`
	Hash  string `json:"hash"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Get()})
}

// handleSolve solves the posted document.
//
// Query parameters:
//   - gap: override the document's gap
//   - selected: override the document's selection ("" clears it)
//   - format: json (default) or svg
//   - width: SVG width in pixels
//   - refresh: bypass the cache
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	opts, format, err := parseSolveQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.decodeDocument(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opts.Formats = []string{format}
	res, err := s.runner.Execute(r.Context(), doc, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cacheStatus := "miss"
	if res.CacheInfo.SolveHit {
		cacheStatus = "hit"
	}
	w.Header().Set(HeaderCache, cacheStatus)
	w.Header().Set(HeaderDocHash, res.DocHash)

	switch format {
	case pipeline.FormatSVG:
		w.Header().Set("Content-Type", "image/svg+xml")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifacts[format])
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	doc, err := s.decodeDocument(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	canonical, err := document.Canonical(doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, validateResponse{
		Valid: true,
		Cards: len(doc.Cards),
		Hash:  cache.Hash(canonical),
	})
}

// parseSolveQuery reads the solve options from the query string.
func parseSolveQuery(r *http.Request) (pipeline.Options, string, error) {
	q := r.URL.Query()
	var opts pipeline.Options

	if v := q.Get("gap"); v != "" {
		gap, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, "", errs.New(errs.ErrCodeInvalidGap, "gap must be a number, got %q", v)
		}
		if err := errs.ValidateGap(gap); err != nil {
			return opts, "", err
		}
		opts.Gap = &gap
	}
	if q.Has("selected") {
		selected := q.Get("selected")
		opts.Selected = &selected
	}
	if v := q.Get("width"); v != "" {
		width, err := strconv.ParseFloat(v, 64)
		if err != nil || width <= 0 {
			return opts, "", errs.New(errs.ErrCodeInvalidInput, "width must be a positive number, got %q", v)
		}
		opts.Width = width
	}
	if v := q.Get("refresh"); v != "" {
		refresh, err := strconv.ParseBool(v)
		if err != nil {
			return opts, "", errs.New(errs.ErrCodeInvalidInput, "refresh must be a boolean, got %q", v)
		}
		opts.Refresh = refresh
	}

	format := q.Get("format")
	switch format {
	case "":
		format = pipeline.FormatJSON
	case pipeline.FormatJSON, pipeline.FormatSVG:
	default:
		return opts, "", errs.New(errs.ErrCodeInvalidFormat, "format must be json or svg, got %q", format)
	}
	return opts, format, nil
}

// decodeDocument reads a JSON or TOML document from the request body.
func (s *Server) decodeDocument(w http.ResponseWriter, r *http.Request) (*document.Document, error) {
	format := document.FormatJSON
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt == "application/toml" {
			format = document.FormatTOML
		}
	}
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer body.Close()

	return document.Decode(body, format)
}

// =============================================================================
// Responses
// =============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(err)
	code := errs.GetCode(err)
	msg := errs.UserMessage(err)

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
		code = errs.ErrCodeInvalidInput
		msg = "request body too large"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		code = errs.ErrCodeTimeout
		msg = "request timed out"
	case code == "":
		code = errs.ErrCodeInternal
		msg = "internal error"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err, "request_id", RequestID(r.Context()))
	}
	observability.HTTP().OnError(r.Context(), r.Method, r.URL.Path, err)
	s.writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func notFound(path string) error {
	return errs.New(errs.ErrCodeNotFound, "no route for %s", path)
}
