package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// deviceConfigEntry is one key of the device config.
type deviceConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// putDeviceConfigRequest is the JSON body for PUT /v1/device-config/{key}.
type putDeviceConfigRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleListDeviceConfig(w http.ResponseWriter, r *http.Request) {
	keys, err := s.device.List()
	if err != nil {
		s.fail(w, r, err, "config key")
		return
	}

	entries := make([]deviceConfigEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, deviceConfigEntry{Key: k, Value: s.device.GetOr(k, "")})
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetDeviceConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, err := s.device.Get(key)
	if err != nil {
		s.fail(w, r, err, "config key")
		return
	}
	s.writeJSON(w, http.StatusOK, deviceConfigEntry{Key: key, Value: v})
}

func (s *Server) handlePutDeviceConfig(w http.ResponseWriter, r *http.Request) {
	var req putDeviceConfigRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	key := chi.URLParam(r, "key")
	if err := s.device.Set(key, req.Value); err != nil {
		s.fail(w, r, err, "config key")
		return
	}
	s.writeJSON(w, http.StatusOK, deviceConfigEntry{Key: key, Value: req.Value})
}

func (s *Server) handleDeleteDeviceConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.device.Clear(chi.URLParam(r, "key")); err != nil {
		s.fail(w, r, err, "config key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
