package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/settings"
)

// cloudStatusResponse is the JSON response for GET /v1/cloud-config.
type cloudStatusResponse struct {
	ManagedKeys []string             `json:"managed_keys"`
	Version     int64                `json:"version"`
	Checksum    string               `json:"checksum,omitempty"`
	PulledAt    *time.Time           `json:"pulled_at,omitempty"`
	PushedAt    *time.Time           `json:"pushed_at,omitempty"`
	Last        *model.CloudDocument `json:"last,omitempty"`
}

func (s *Server) handleCloudStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.GetSyncState(r.Context())
	if err != nil {
		s.fail(w, r, err, "sync state")
		return
	}

	resp := cloudStatusResponse{
		ManagedKeys: s.cloud.ManagedKeys(),
		Version:     state.Version,
		Checksum:    state.Checksum,
		PulledAt:    state.PulledAt,
		PushedAt:    state.PushedAt,
	}
	last, err := s.cloud.Last()
	switch {
	case err == nil:
		resp.Last = &last
	case !errors.Is(err, settings.ErrNotFound):
		s.fail(w, r, err, "cloud config")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloudPull(w http.ResponseWriter, r *http.Request) {
	result, err := s.cloud.Pull(r.Context())
	if err != nil {
		s.fail(w, r, err, "cloud config")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCloudPush(w http.ResponseWriter, r *http.Request) {
	result, err := s.cloud.Push(r.Context())
	if err != nil {
		s.fail(w, r, err, "cloud config")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
