package engine

import (
	"context"
	"time"

	"github.com/seantiz/keeper/internal/model"
)

// Every submits a job built by newJob immediately and then once per interval
// until ctx ends. A tick is skipped while the previously scheduled job is
// still pending or running.
func (e *Engine) Every(ctx context.Context, interval time.Duration, newJob func() *model.Job) {
	var lastID string
	for {
		if e.due(ctx, lastID) {
			j := newJob()
			if err := e.Submit(ctx, j); err != nil {
				e.logger.Error("scheduled job not submitted", "kind", j.Kind, "error", err)
			} else {
				lastID = j.ID
				e.logger.Debug("scheduled job submitted", "job_id", j.ID, "kind", j.Kind)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-e.clock.After(interval):
		}
	}
}

func (e *Engine) due(ctx context.Context, lastID string) bool {
	if lastID == "" {
		return true
	}
	j, err := e.store.GetJob(ctx, lastID)
	if err != nil {
		return true
	}
	if !model.Terminal(j.Status) {
		e.logger.Info("scheduled job still active, skipping tick", "job_id", j.ID, "status", j.Status)
		return false
	}
	return true
}
