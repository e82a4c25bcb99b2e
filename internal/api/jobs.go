package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/keeper/internal/model"
)

// createJobRequest is the JSON body for POST /v1/jobs.
type createJobRequest struct {
	Kind     string `json:"kind"`
	AssetKey string `json:"asset_key"`
	DelayS   int    `json:"delay_s"`
	TimeoutS *int   `json:"timeout_s"`
}

// listJobsResponse wraps the paginated list response.
type listJobsResponse struct {
	Jobs   []*model.Job `json:"jobs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.Kind == "" {
		s.writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	j := &model.Job{
		Kind:     req.Kind,
		AssetKey: req.AssetKey,
		DelayS:   req.DelayS,
		TimeoutS: req.TimeoutS,
	}
	if err := s.engine.Submit(r.Context(), j); err != nil {
		s.fail(w, r, err, "job")
		return
	}

	s.writeJSON(w, http.StatusAccepted, j)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err, "job")
		return
	}
	s.writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	jobs, total, err := s.store.ListJobs(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, r, err, "job")
		return
	}

	if jobs == nil {
		jobs = []*model.Job{}
	}

	s.writeJSON(w, http.StatusOK, listJobsResponse{
		Jobs:   jobs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleListJobKinds(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Kinds())
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.engine.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err, "job")
		return
	}
	s.writeJSON(w, http.StatusOK, j)
}
