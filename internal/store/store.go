package store

import (
	"context"
	"errors"
	"time"

	"github.com/seantiz/keeper/internal/model"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidTransition is returned when a job status transition is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// JobStats holds aggregate job execution statistics.
type JobStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByKind   map[string]int `json:"count_by_kind"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// SyncState records the last cloud config exchange.
type SyncState struct {
	Version  int64
	Checksum string
	PulledAt *time.Time
	PushedAt *time.Time
}

// Store defines the persistence operations of the appliance catalogue.
type Store interface {
	CreateAsset(ctx context.Context, a *model.Asset) error
	GetAsset(ctx context.Context, key string) (*model.Asset, error)
	ListAssets(ctx context.Context, includeArchived bool) ([]*model.Asset, error)
	UpdateAssetFlags(ctx context.Context, key string, paused, archived bool) error
	DeleteAsset(ctx context.Context, key string) error

	UpsertPoint(ctx context.Context, p *model.RecoveryPoint) error
	GetPoint(ctx context.Context, assetKey string, epoch int64) (*model.RecoveryPoint, error)
	ListPoints(ctx context.Context, assetKey string) ([]model.RecoveryPoint, error)
	MarkPointOffsite(ctx context.Context, assetKey string, epoch int64) error
	DeletePoint(ctx context.Context, assetKey string, epoch int64) error

	UpsertScreenshot(ctx context.Context, s *model.Screenshot) error
	ListScreenshots(ctx context.Context, assetKey string) ([]model.Screenshot, error)
	DeleteScreenshot(ctx context.Context, assetKey string, epoch int64) error

	CreateJob(ctx context.Context, j *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*model.Job, int, error)
	UpdateJobStatus(ctx context.Context, id, status string) error
	UpdateJob(ctx context.Context, j *model.Job) error
	GetJobStats(ctx context.Context) (*JobStats, error)
	InsertJobLogLine(ctx context.Context, jobID string, seq int, line string) error
	GetJobLogLines(ctx context.Context, jobID string) ([]model.JobLogLine, error)
	FailInterruptedJobs(ctx context.Context, reason string) (int, error)

	GetSyncState(ctx context.Context) (SyncState, error)
	PutSyncState(ctx context.Context, st SyncState) error

	Ping(ctx context.Context) error
	Close() error
}
