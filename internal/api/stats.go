package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Assets        int            `json:"assets"`
	Jobs          int            `json:"jobs"`
	ByStatus      map[string]int `json:"by_status"`
	ByKind        map[string]int `json:"by_kind"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetJobStats(r.Context())
	if err != nil {
		s.fail(w, r, err, "stats")
		return
	}
	assets, err := s.store.ListAssets(r.Context(), true)
	if err != nil {
		s.fail(w, r, err, "stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Assets:        len(assets),
		Jobs:          stats.Total,
		ByStatus:      stats.CountByStatus,
		ByKind:        stats.CountByKind,
		AvgDurationMS: stats.AvgDurationMS,
	})
}
