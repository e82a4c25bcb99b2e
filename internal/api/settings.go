package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/keeper/internal/asset"
)

func (s *Server) settingsKind(w http.ResponseWriter, r *http.Request) (asset.Kind, bool) {
	kind, ok := s.settings[chi.URLParam(r, "kind")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown settings kind")
	}
	return kind, ok
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.settingsKind(w, r)
	if !ok {
		return
	}
	m, err := kind.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.settingsKind(w, r)
	if !ok {
		return
	}
	var body map[string]any
	if !s.decodeBody(w, r, &body) {
		return
	}
	m, err := kind.Set(r.Context(), chi.URLParam(r, "key"), body)
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}
