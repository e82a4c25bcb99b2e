package runner

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownKind is returned when no runner is registered for a job kind.
var ErrUnknownKind = errors.New("unknown job kind")

// Registry maps job kinds to their runners.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		runners: make(map[string]Runner),
	}
}

// Register adds r under the kind it describes, replacing any earlier runner.
func (r *Registry) Register(run Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[run.Describe().Kind] = run
}

// Resolve returns the runner for kind.
func (r *Registry) Resolve(kind string) (Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runners[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return run, nil
}

// List returns the registered kinds sorted by name for a stable API response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.runners))
	for _, run := range r.runners {
		infos = append(infos, run.Describe())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Kind < infos[j].Kind
	})
	return infos
}
