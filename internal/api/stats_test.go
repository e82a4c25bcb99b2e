package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/seantiz/keeper/internal/model"
)

func TestGetStatsEmpty(t *testing.T) {
	env := newTestEnv(t)

	var stats statsResponse
	if code := env.do(t, "GET", "/v1/stats", nil, &stats); code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	if stats.Jobs != 0 || stats.Assets != 0 {
		t.Errorf("jobs/assets = %d/%d, want 0/0", stats.Jobs, stats.Assets)
	}
	if stats.AvgDurationMS != 0 {
		t.Errorf("avg_duration_ms = %f, want 0", stats.AvgDurationMS)
	}
}

func TestGetStatsPopulated(t *testing.T) {
	env := newTestEnv(t)
	srv := env.srv
	ctx := context.Background()

	for range 3 {
		j := createPendingJob(t, srv)
		if err := srv.store.UpdateJobStatus(ctx, j.ID, model.StatusRunning); err != nil {
			t.Fatalf("pending→running: %v", err)
		}
		dur := 100
		completed := &model.Job{
			ID: j.ID, Status: model.StatusCompleted,
			DurationMS: &dur, StartedAt: ptrTime(time.Now()), FinishedAt: ptrTime(time.Now()),
		}
		if err := srv.store.UpdateJob(ctx, completed); err != nil {
			t.Fatalf("UpdateJob: %v", err)
		}
	}

	failed := createPendingJob(t, srv)
	if err := srv.store.UpdateJobStatus(ctx, failed.ID, model.StatusFailed); err != nil {
		t.Fatalf("pending→failed: %v", err)
	}

	if code := env.do(t, "POST", "/v1/assets", map[string]string{"key": "web01", "type": "agent"}, nil); code != http.StatusCreated {
		t.Fatalf("create asset status = %d", code)
	}

	var stats statsResponse
	if code := env.do(t, "GET", "/v1/stats", nil, &stats); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	if stats.Jobs != 4 {
		t.Errorf("jobs = %d, want 4", stats.Jobs)
	}
	if stats.Assets != 1 {
		t.Errorf("assets = %d, want 1", stats.Assets)
	}
	if stats.ByStatus[model.StatusCompleted] != 3 || stats.ByStatus[model.StatusFailed] != 1 {
		t.Errorf("by_status = %v", stats.ByStatus)
	}
	if stats.ByKind[model.KindCloudSync] != 4 {
		t.Errorf("by_kind = %v", stats.ByKind)
	}
	if stats.AvgDurationMS != 100 {
		t.Errorf("avg_duration_ms = %f, want 100", stats.AvgDurationMS)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
