package runner

import (
	"context"
	"fmt"
)

// Runner executes jobs of one kind.
type Runner interface {
	// Run performs the job. The context carries the job timeout.
	Run(ctx context.Context, spec Spec) (Result, error)

	// Describe reports the kind served and what a submission must carry.
	Describe() Info
}

// Spec describes one job run handed to a Runner.
type Spec struct {
	JobID    string `json:"job_id"`
	Kind     string `json:"kind"`
	AssetKey string `json:"asset_key,omitempty"`
	TimeoutS int    `json:"timeout_s"`

	// LogWriter is an optional callback runners invoke to emit log lines
	// while running. Each call delivers one line to connected SSE subscribers.
	LogWriter func(line string) `json:"-"`
}

// Logf formats a line and hands it to LogWriter, if any.
func (s Spec) Logf(format string, args ...any) {
	if s.LogWriter != nil {
		s.LogWriter(fmt.Sprintf(format, args...))
	}
}

// Result holds what a runner produced.
type Result struct {
	Output     string `json:"output"`
	DurationMS int    `json:"duration_ms"`
}

// Info describes a registered job kind.
type Info struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	NeedsAsset  bool   `json:"needs_asset"`
}
