package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/keeper/internal/model"
)

// createAssetRequest is the JSON body for POST /v1/assets.
type createAssetRequest struct {
	Key      string `json:"key"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
}

// createPointRequest is the JSON body for POST /v1/assets/{key}/points.
type createPointRequest struct {
	Epoch     int64 `json:"epoch"`
	SizeBytes int64 `json:"size_bytes"`
	Offsite   bool  `json:"offsite"`
	Locked    bool  `json:"locked"`
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.assets.List(r.Context(), parseBoolQuery(r, "archived"))
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	a, err := s.assets.Add(r.Context(), model.Asset{
		Key:      req.Key,
		Type:     req.Type,
		Name:     req.Name,
		Hostname: req.Hostname,
		OS:       req.OS,
	})
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := s.assets.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handlePauseAsset(w http.ResponseWriter, r *http.Request) {
	a, err := s.assets.Pause(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleResumeAsset(w http.ResponseWriter, r *http.Request) {
	a, err := s.assets.Resume(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleArchiveAsset(w http.ResponseWriter, r *http.Request) {
	a, err := s.assets.Archive(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.assets.Remove(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPoints(w http.ResponseWriter, r *http.Request) {
	points, err := s.assets.Points(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleCreatePoint(w http.ResponseWriter, r *http.Request) {
	var req createPointRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	p, err := s.assets.AddPoint(r.Context(), model.RecoveryPoint{
		AssetKey:  chi.URLParam(r, "key"),
		Epoch:     req.Epoch,
		SizeBytes: req.SizeBytes,
		Offsite:   req.Offsite,
		Locked:    req.Locked,
	})
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePoint(w http.ResponseWriter, r *http.Request) {
	epoch, err := strconv.ParseInt(chi.URLParam(r, "epoch"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "epoch must be an integer")
		return
	}

	if err := s.assets.RemovePoint(r.Context(), chi.URLParam(r, "key"), epoch); err != nil {
		s.fail(w, r, err, "point")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
