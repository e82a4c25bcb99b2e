package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/runner"
	"github.com/seantiz/keeper/internal/store"
)

// DefaultTimeoutS is the default timeout in seconds when none is specified.
const DefaultTimeoutS = 300

// ErrInvalidJob is returned by Submit for malformed submissions.
var ErrInvalidJob = errors.New("invalid job")

// Engine orchestrates asynchronous job execution.
type Engine struct {
	store    store.Store
	registry *runner.Registry
	clock    clockwork.Clock
	logger   *slog.Logger
	wg       sync.WaitGroup
	broker   *LogBroker

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewEngine creates a new execution engine.
func NewEngine(s store.Store, reg *runner.Registry, clock clockwork.Clock, logger *slog.Logger) *Engine {
	return &Engine{
		store:    s,
		registry: reg,
		clock:    clock,
		logger:   logger,
		broker:   NewLogBroker(),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Broker returns the engine's log broker for SSE subscription.
func (e *Engine) Broker() *LogBroker {
	return e.broker
}

// Kinds lists the job kinds the engine can run.
func (e *Engine) Kinds() []runner.Info {
	return e.registry.List()
}

// Submit validates and stores j as pending, then runs it in a goroutine.
// Missing ID, status and creation time are filled in. The goroutine works on
// a copy so the caller keeps ownership of j.
func (e *Engine) Submit(ctx context.Context, j *model.Job) error {
	run, err := e.registry.Resolve(j.Kind)
	if err != nil {
		return err
	}
	if run.Describe().NeedsAsset && j.AssetKey == "" {
		return fmt.Errorf("%w: %s", runner.ErrAssetRequired, j.Kind)
	}
	if j.DelayS < 0 {
		return fmt.Errorf("%w: delay must not be negative", ErrInvalidJob)
	}
	if j.TimeoutS != nil && *j.TimeoutS < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidJob)
	}

	if j.ID == "" {
		j.ID = model.NewID()
	}
	j.Status = model.StatusPending
	if j.CreatedAt.IsZero() {
		j.CreatedAt = e.clock.Now().UTC()
	}

	// The topic exists before the job is visible, so no subscriber misses it.
	opened := e.broker.Open(j.ID)
	if err := e.store.CreateJob(ctx, j); err != nil {
		if opened {
			e.broker.drop(j.ID)
		}
		return fmt.Errorf("create job: %w", err)
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancels[j.ID] = cancel
	e.mu.Unlock()

	jCopy := *j
	e.wg.Go(func() {
		defer e.forget(jCopy.ID)
		e.execute(jobCtx, &jCopy, run)
	})

	return nil
}

// Cancel marks a pending or running job cancelled and interrupts it.
// Returns store.ErrInvalidTransition for jobs that already finished.
func (e *Engine) Cancel(ctx context.Context, id string) (*model.Job, error) {
	if err := e.store.UpdateJobStatus(ctx, id, model.StatusCancelled); err != nil {
		return nil, err
	}

	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()
	if ok {
		cancel()
	}

	j, err := e.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	jobsTotal.WithLabelValues(j.Kind, model.StatusCancelled).Inc()
	e.logger.Info("job cancelled", "job_id", id, "kind", j.Kind)
	return j, nil
}

// Wait blocks until all in-flight jobs complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cancel, ok := e.cancels[id]; ok {
		cancel()
		delete(e.cancels, id)
	}
}

// execute runs the job lifecycle: pending→running→completed/failed.
func (e *Engine) execute(jobCtx context.Context, j *model.Job, run runner.Runner) {
	defer e.broker.Close(j.ID)

	if j.DelayS > 0 {
		select {
		case <-e.clock.After(time.Duration(j.DelayS) * time.Second):
		case <-jobCtx.Done():
			return
		}
	}

	if err := e.store.UpdateJobStatus(context.Background(), j.ID, model.StatusRunning); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Cancelled while waiting.
			return
		}
		e.logger.Error("failed to transition to running", "job_id", j.ID, "error", err)
		e.finishFailed(j, nil, fmt.Sprintf("failed to start: %v", err))
		return
	}

	// Capture start time immediately after the running transition so that
	// started_at stays consistent across success and failure paths.
	start := e.clock.Now().UTC()

	timeoutS := DefaultTimeoutS
	if j.TimeoutS != nil && *j.TimeoutS > 0 {
		timeoutS = *j.TimeoutS
	}

	ctx, cancel := context.WithTimeout(jobCtx, time.Duration(timeoutS)*time.Second)
	defer cancel()

	// The LogWriter dual-writes: persist to SQLite for historical viewing,
	// then publish to LogBroker for real-time SSE.
	var seq atomic.Int32
	spec := runner.Spec{
		JobID:    j.ID,
		Kind:     j.Kind,
		AssetKey: j.AssetKey,
		TimeoutS: timeoutS,
		LogWriter: func(line string) {
			currentSeq := int(seq.Add(1) - 1)
			if err := e.store.InsertJobLogLine(context.Background(), j.ID, currentSeq, line); err != nil {
				e.logger.Error("failed to persist log line", "job_id", j.ID, "seq", currentSeq, "error", err)
			}
			e.broker.Publish(j.ID, line)
		},
	}

	e.logger.Info("job started", "job_id", j.ID, "kind", j.Kind, "asset", j.AssetKey)
	result, err := run.Run(ctx, spec)
	durationMS := int(e.clock.Since(start).Milliseconds())

	if jobCtx.Err() != nil {
		// Cancelled: the store already holds the terminal status.
		return
	}
	if err != nil {
		errMsg := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			errMsg = fmt.Sprintf("job timed out after %ds", timeoutS)
		}
		e.finishFailed(j, &start, errMsg)
		return
	}

	now := e.clock.Now().UTC()
	dur := durationMS
	if result.DurationMS > 0 {
		dur = result.DurationMS
	}

	completed := &model.Job{
		ID:         j.ID,
		Status:     model.StatusCompleted,
		Output:     result.Output,
		DurationMS: &dur,
		StartedAt:  &start,
		FinishedAt: &now,
	}

	if err := e.store.UpdateJob(context.Background(), completed); err != nil {
		e.logger.Error("failed to update completed job", "job_id", j.ID, "error", err)
		return
	}
	jobsTotal.WithLabelValues(j.Kind, model.StatusCompleted).Inc()
	e.logger.Info("job completed", "job_id", j.ID, "kind", j.Kind, "duration_ms", dur)
}

// finishFailed marks a job as failed with the given error message.
// startedAt may be nil if execution never started.
func (e *Engine) finishFailed(j *model.Job, startedAt *time.Time, errMsg string) {
	now := e.clock.Now().UTC()
	var durationMS int
	if startedAt != nil {
		durationMS = int(e.clock.Since(*startedAt).Milliseconds())
	}

	failed := &model.Job{
		ID:         j.ID,
		Status:     model.StatusFailed,
		Error:      errMsg,
		DurationMS: &durationMS,
		StartedAt:  startedAt,
		FinishedAt: &now,
	}

	if err := e.store.UpdateJob(context.Background(), failed); err != nil {
		e.logger.Error("failed to update failed job", "job_id", j.ID, "error", err)
		return
	}
	jobsTotal.WithLabelValues(j.Kind, model.StatusFailed).Inc()
	e.logger.Warn("job failed", "job_id", j.ID, "kind", j.Kind, "error", errMsg)
}
