package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/seantiz/keeper/internal/engine"
	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/runner"
	"github.com/seantiz/keeper/internal/store"
)

// funcRunner is a configurable runner for engine tests.
type funcRunner struct {
	kind       string
	needsAsset bool
	fn         func(ctx context.Context, spec runner.Spec) (runner.Result, error)
}

func (f *funcRunner) Run(ctx context.Context, spec runner.Spec) (runner.Result, error) {
	return f.fn(ctx, spec)
}

func (f *funcRunner) Describe() runner.Info {
	return runner.Info{Kind: f.kind, NeedsAsset: f.needsAsset}
}

// blockingRunner runs until its context ends.
func blockingRunner(kind string) *funcRunner {
	return &funcRunner{kind: kind, fn: func(ctx context.Context, _ runner.Spec) (runner.Result, error) {
		<-ctx.Done()
		return runner.Result{}, ctx.Err()
	}}
}

func newTestEngine(t *testing.T, runners ...runner.Runner) (*engine.Engine, store.Store, *clockwork.FakeClock) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	reg := runner.NewRegistry()
	for _, r := range runners {
		reg.Register(r)
	}

	clock := clockwork.NewFakeClock()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return engine.NewEngine(s, reg, clock, logger), s, clock
}

// waitForStatus polls the store until the job reaches the expected status.
func waitForStatus(t *testing.T, s store.Store, id, expected string, timeout time.Duration) *model.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		j, err := s.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if j.Status == expected {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %q within %v", id, expected, timeout)
	return nil
}

func TestSubmitHappyPath(t *testing.T) {
	r := &funcRunner{kind: "echo", fn: func(_ context.Context, spec runner.Spec) (runner.Result, error) {
		spec.Logf("working on %s", spec.AssetKey)
		spec.Logf("done")
		return runner.Result{Output: `{"ok":true}`}, nil
	}}
	eng, s, _ := newTestEngine(t, r)

	j := &model.Job{Kind: "echo", AssetKey: "web01"}
	if err := eng.Submit(context.Background(), j); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if j.ID == "" {
		t.Fatal("Submit did not assign an ID")
	}
	if j.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", j.Status)
	}

	completed := waitForStatus(t, s, j.ID, model.StatusCompleted, 5*time.Second)
	eng.Wait()
	if completed.Output != `{"ok":true}` {
		t.Errorf("output = %q", completed.Output)
	}
	if completed.StartedAt == nil || completed.FinishedAt == nil {
		t.Error("expected started_at and finished_at to be set")
	}
	if completed.DurationMS == nil {
		t.Error("duration_ms is nil")
	}

	lines, err := s.GetJobLogLines(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("GetJobLogLines: %v", err)
	}
	if len(lines) != 2 || lines[0].Line != "working on web01" || lines[1].Seq != 1 {
		t.Errorf("log lines = %+v", lines)
	}
}

func TestSubmitDelay(t *testing.T) {
	ran := make(chan struct{})
	r := &funcRunner{kind: "echo", fn: func(context.Context, runner.Spec) (runner.Result, error) {
		close(ran)
		return runner.Result{}, nil
	}}
	eng, s, clock := newTestEngine(t, r)

	j := &model.Job{Kind: "echo", DelayS: 60}
	if err := eng.Submit(context.Background(), j); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	clock.BlockUntil(1)
	got, _ := s.GetJob(context.Background(), j.ID)
	if got.Status != model.StatusPending {
		t.Errorf("status during delay = %q, want pending", got.Status)
	}

	clock.Advance(59 * time.Second)
	select {
	case <-ran:
		t.Fatal("runner started before the delay elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Second)
	waitForStatus(t, s, j.ID, model.StatusCompleted, 5*time.Second)
	eng.Wait()
}

func TestSubmitRunnerError(t *testing.T) {
	r := &funcRunner{kind: "echo", fn: func(context.Context, runner.Spec) (runner.Result, error) {
		return runner.Result{}, errors.New("portal unreachable")
	}}
	eng, s, _ := newTestEngine(t, r)

	j := &model.Job{Kind: "echo"}
	if err := eng.Submit(context.Background(), j); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	failed := waitForStatus(t, s, j.ID, model.StatusFailed, 5*time.Second)
	eng.Wait()
	if failed.Error != "portal unreachable" {
		t.Errorf("error = %q, want %q", failed.Error, "portal unreachable")
	}
}

func TestSubmitTimeout(t *testing.T) {
	eng, s, _ := newTestEngine(t, blockingRunner("slow"))

	timeout := 1
	j := &model.Job{Kind: "slow", TimeoutS: &timeout}
	if err := eng.Submit(context.Background(), j); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	failed := waitForStatus(t, s, j.ID, model.StatusFailed, 5*time.Second)
	eng.Wait()
	if failed.Error != "job timed out after 1s" {
		t.Errorf("error = %q, want timeout message", failed.Error)
	}
}

func TestSubmitValidation(t *testing.T) {
	eng, s, _ := newTestEngine(t, &funcRunner{kind: "per-asset", needsAsset: true})

	negative := -1
	tests := []struct {
		name string
		job  *model.Job
		want error
	}{
		{"unknown kind", &model.Job{Kind: "defrag"}, runner.ErrUnknownKind},
		{"missing asset", &model.Job{Kind: "per-asset"}, runner.ErrAssetRequired},
		{"negative delay", &model.Job{Kind: "per-asset", AssetKey: "web01", DelayS: -5}, engine.ErrInvalidJob},
		{"negative timeout", &model.Job{Kind: "per-asset", AssetKey: "web01", TimeoutS: &negative}, engine.ErrInvalidJob},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.Submit(context.Background(), tt.job)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Submit error = %v, want %v", err, tt.want)
			}
		})
	}

	_, total, err := s.ListJobs(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if total != 0 {
		t.Errorf("rejected submissions were stored: total = %d", total)
	}
}

func TestCancelDuringDelay(t *testing.T) {
	eng, s, clock := newTestEngine(t, blockingRunner("slow"))

	j := &model.Job{Kind: "slow", DelayS: 3600}
	if err := eng.Submit(context.Background(), j); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	clock.BlockUntil(1)

	got, err := eng.Cancel(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
	eng.Wait()

	final, _ := s.GetJob(context.Background(), j.ID)
	if final.Status != model.StatusCancelled || final.StartedAt != nil {
		t.Errorf("final job = %+v, want cancelled and never started", final)
	}
}

func TestCancelRunning(t *testing.T) {
	eng, s, _ := newTestEngine(t, blockingRunner("slow"))

	j := &model.Job{Kind: "slow"}
	if err := eng.Submit(context.Background(), j); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, s, j.ID, model.StatusRunning, 5*time.Second)

	if _, err := eng.Cancel(context.Background(), j.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	eng.Wait()

	final, _ := s.GetJob(context.Background(), j.ID)
	if final.Status != model.StatusCancelled {
		t.Errorf("status = %q, want cancelled", final.Status)
	}
}

func TestCancelFinished(t *testing.T) {
	r := &funcRunner{kind: "echo", fn: func(context.Context, runner.Spec) (runner.Result, error) {
		return runner.Result{}, nil
	}}
	eng, s, _ := newTestEngine(t, r)

	j := &model.Job{Kind: "echo"}
	if err := eng.Submit(context.Background(), j); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, s, j.ID, model.StatusCompleted, 5*time.Second)
	eng.Wait()

	if _, err := eng.Cancel(context.Background(), j.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("Cancel error = %v, want ErrInvalidTransition", err)
	}
	if _, err := eng.Cancel(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Cancel error = %v, want ErrNotFound", err)
	}
}

func TestKinds(t *testing.T) {
	eng, _, _ := newTestEngine(t, &funcRunner{kind: "b"}, &funcRunner{kind: "a", needsAsset: true})

	kinds := eng.Kinds()
	if len(kinds) != 2 || kinds[0].Kind != "a" || !kinds[0].NeedsAsset {
		t.Errorf("Kinds() = %+v", kinds)
	}
}

func TestSubmitDuplicateIDKeepsLiveTopic(t *testing.T) {
	eng, s, _ := newTestEngine(t, blockingRunner("slow"))
	ctx := context.Background()

	j := &model.Job{Kind: "slow"}
	if err := eng.Submit(ctx, j); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, s, j.ID, model.StatusRunning, 5*time.Second)

	ch, unsub := eng.Broker().Subscribe(j.ID)
	defer unsub()

	if err := eng.Submit(ctx, &model.Job{ID: j.ID, Kind: "slow"}); err == nil {
		t.Fatal("Submit with a taken ID succeeded")
	}
	select {
	case _, ok := <-ch:
		if !ok {
			t.Fatal("failed duplicate submit closed the running job's log stream")
		}
	default:
	}

	if _, err := eng.Cancel(ctx, j.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	eng.Wait()
	for range ch {
	}
}
