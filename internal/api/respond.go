package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/seantiz/keeper/internal/asset"
	"github.com/seantiz/keeper/internal/cloudconfig"
	"github.com/seantiz/keeper/internal/deviceconfig"
	"github.com/seantiz/keeper/internal/engine"
	"github.com/seantiz/keeper/internal/runner"
	"github.com/seantiz/keeper/internal/screenshot"
	"github.com/seantiz/keeper/internal/serializer"
	"github.com/seantiz/keeper/internal/settings"
	"github.com/seantiz/keeper/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// fail maps a service error to a response. Unexpected errors are logged and
// reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, resource string) {
	status := statusFor(err)
	switch {
	case status == http.StatusInternalServerError:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		s.writeError(w, status, "internal error")
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, status, resource+" not found")
	default:
		s.writeError(w, status, err.Error())
	}
}

func statusFor(err error) int {
	var missing serializer.MissingFieldError
	var invalid serializer.InvalidFieldError

	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, settings.ErrNotFound),
		errors.Is(err, deviceconfig.ErrNotFound),
		errors.Is(err, screenshot.ErrPointNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, asset.ErrPointLocked),
		errors.Is(err, cloudconfig.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, asset.ErrInvalidAsset),
		errors.Is(err, settings.ErrInvalidKey),
		errors.Is(err, deviceconfig.ErrInvalidKey),
		errors.Is(err, screenshot.ErrInvalidScreenshot),
		errors.Is(err, screenshot.ErrUnsupportedPolicy),
		errors.Is(err, runner.ErrUnknownKind),
		errors.Is(err, runner.ErrAssetRequired),
		errors.Is(err, engine.ErrInvalidJob),
		errors.As(err, &missing),
		errors.As(err, &invalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a size-limited JSON request body into v, answering 400
// itself on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolQuery treats "1", "true" and "yes" as set.
func parseBoolQuery(r *http.Request, key string) bool {
	switch r.URL.Query().Get(key) {
	case "1", "true", "yes":
		return true
	}
	return false
}
