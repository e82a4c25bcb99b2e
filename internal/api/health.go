package api

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cloud    string `json:"cloud"`
	JobKinds int    `json:"job_kinds"`
}

// handleHealthz reports 503 while the catalogue database is unreachable.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok", Cloud: "disabled"}
	if s.cloud != nil {
		resp.Cloud = "enabled"
	}
	if s.engine != nil {
		resp.JobKinds = len(s.engine.Kinds())
	}

	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check: database unreachable", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}
