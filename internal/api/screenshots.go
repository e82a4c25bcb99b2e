package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/keeper/internal/model"
)

// recordScreenshotRequest is the JSON body for POST /v1/assets/{key}/screenshots.
type recordScreenshotRequest struct {
	Epoch     int64      `json:"epoch"`
	Status    string     `json:"status"`
	ImagePath string     `json:"image_path"`
	ErrorText string     `json:"error_text"`
	TakenAt   *time.Time `json:"taken_at"`
}

func (s *Server) handleMatchScreenshots(w http.ResponseWriter, r *http.Request) {
	result, err := s.shots.Match(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecordScreenshot(w http.ResponseWriter, r *http.Request) {
	var req recordScreenshotRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	shot := model.Screenshot{
		AssetKey:      chi.URLParam(r, "key"),
		SnapshotEpoch: req.Epoch,
		Status:        req.Status,
		ImagePath:     req.ImagePath,
		ErrorText:     req.ErrorText,
	}
	if req.TakenAt != nil {
		shot.TakenAt = req.TakenAt.UTC()
	}

	if err := s.shots.Record(r.Context(), shot); err != nil {
		s.fail(w, r, err, "point")
		return
	}
	s.writeJSON(w, http.StatusCreated, shot)
}

func (s *Server) handlePruneScreenshots(w http.ResponseWriter, r *http.Request) {
	result, err := s.shots.Prune(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, r, err, "asset")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
