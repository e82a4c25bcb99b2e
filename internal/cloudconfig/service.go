package cloudconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hashicorp/go-version"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/seantiz/keeper/internal/deviceconfig"
	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/serializer"
	"github.com/seantiz/keeper/internal/settings"
	"github.com/seantiz/keeper/internal/store"
)

const (
	// CurrentSchema is the schema stamped on published documents.
	CurrentSchema = "1.0"

	// SupportedSchemas is the constraint a pulled document's schema must meet.
	SupportedSchemas = ">= 1.0, < 2.0"

	snapshotKey = "cloud"
)

var supportedSchemas = func() version.Constraints {
	c, err := version.NewConstraint(SupportedSchemas)
	if err != nil {
		panic(err)
	}
	return c
}()

// DefaultManagedKeys are the device config keys owned by the portal.
var DefaultManagedKeys = []string{
	"alertEmails",
	"deviceTimezone",
	"localRetentionDefault",
	"offsiteBandwidthLimit",
	"screenshotsEnabled",
	"verificationConcurrency",
}

// Pull outcomes.
const (
	StatusUnchanged = "unchanged"
	StatusApplied   = "applied"
	StatusRejected  = "rejected"
	StatusEmpty     = "empty"
)

// Push outcomes.
const (
	StatusSkipped   = "skipped"
	StatusPublished = "published"
	StatusConflict  = "conflict"
)

// PullResult describes what a pull did to the device config.
type PullResult struct {
	Status   string   `json:"status"`
	Version  int64    `json:"version"`
	Checksum string   `json:"checksum,omitempty"`
	Applied  []string `json:"applied"`
	Cleared  []string `json:"cleared"`
	Rejected []string `json:"rejected"`
	Reason   string   `json:"reason,omitempty"`
}

// PushResult describes the outcome of a push.
type PushResult struct {
	Status   string `json:"status"`
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`
	Keys     int    `json:"keys"`
}

// Skipped reports whether the push found nothing to publish.
func (r PushResult) Skipped() bool { return r.Status == StatusSkipped }

// SyncResult combines the pull and push halves of a sync.
type SyncResult struct {
	Pull PullResult `json:"pull"`
	Push PushResult `json:"push"`
}

// DeviceConfig is the subset of deviceconfig.Store the service needs.
type DeviceConfig interface {
	Get(key string) (string, error)
	Has(key string) bool
	Set(key, value string) error
	Clear(key string) error
}

// StateStore persists the last exchanged version and checksum.
type StateStore interface {
	GetSyncState(ctx context.Context) (store.SyncState, error)
	PutSyncState(ctx context.Context, st store.SyncState) error
}

// Options tune a Service. Zero values select defaults.
type Options struct {
	Managed   []string
	Clock     clockwork.Clock
	Snapshots *settings.Repository[model.CloudDocument]
	Logger    *slog.Logger
}

// Service reconciles the cloud-managed device config with the portal.
// Pull, Push and Sync are serialized.
type Service struct {
	mu         sync.Mutex
	client     Client
	config     DeviceConfig
	state      StateStore
	managed    map[string]bool
	constraint version.Constraints
	clock      clockwork.Clock
	snapshots  *settings.Repository[model.CloudDocument]
	logger     *slog.Logger
}

// NewService creates a Service.
func NewService(client Client, config DeviceConfig, state StateStore, opts Options) *Service {
	keys := opts.Managed
	if len(keys) == 0 {
		keys = DefaultManagedKeys
	}
	managed := make(map[string]bool, len(keys))
	for _, k := range keys {
		managed[k] = true
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		client:     client,
		config:     config,
		state:      state,
		managed:    managed,
		constraint: supportedSchemas,
		clock:      opts.Clock,
		snapshots:  opts.Snapshots,
		logger:     opts.Logger,
	}
}

// ManagedKeys returns the managed key set in lexical order.
func (s *Service) ManagedKeys() []string {
	keys := make([]string, 0, len(s.managed))
	for k := range s.managed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Last returns the last document applied by a pull.
func (s *Service) Last() (model.CloudDocument, error) {
	if s.snapshots == nil {
		return model.CloudDocument{}, settings.ErrNotFound
	}
	return s.snapshots.Load(snapshotKey)
}

// Pull fetches the portal's document and applies it to the device config.
// A rejected document leaves the device untouched and is not an error.
func (s *Service) Pull(ctx context.Context) (PullResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.pull(ctx)
	if err != nil {
		pullTotal.WithLabelValues("error").Inc()
		return result, err
	}
	pullTotal.WithLabelValues(result.Status).Inc()
	return result, nil
}

func (s *Service) pull(ctx context.Context) (PullResult, error) {
	result := PullResult{Applied: []string{}, Cleared: []string{}, Rejected: []string{}}

	doc, err := s.client.Fetch(ctx)
	if errors.Is(err, ErrNoRemoteConfig) {
		result.Status = StatusEmpty
		return result, nil
	}
	if err != nil {
		return result, err
	}
	result.Version = doc.Version
	result.Checksum = doc.Checksum

	if sum := Checksum(doc.Settings); sum != doc.Checksum {
		return s.reject(result, "checksum mismatch"), nil
	}
	if reason := s.checkSchema(doc.Schema); reason != "" {
		return s.reject(result, reason), nil
	}

	state, err := s.state.GetSyncState(ctx)
	if err != nil {
		return result, err
	}

	incoming := make(map[string]string, len(doc.Settings))
	for k, v := range doc.Settings {
		if !s.managed[k] || !model.ValidKey(k) {
			result.Rejected = append(result.Rejected, k)
			continue
		}
		incoming[k] = v
	}
	sort.Strings(result.Rejected)
	managedSum := Checksum(incoming)

	if doc.Version == state.Version && managedSum == state.Checksum {
		result.Status = StatusUnchanged
		return result, nil
	}
	if doc.Version < state.Version {
		return s.reject(result, fmt.Sprintf("stale version %d, device is at %d", doc.Version, state.Version)), nil
	}

	for _, k := range s.ManagedKeys() {
		v, remote := incoming[k]
		if !remote {
			if s.config.Has(k) {
				if err := s.config.Clear(k); err != nil {
					return result, fmt.Errorf("clear %s: %w", k, err)
				}
				result.Cleared = append(result.Cleared, k)
			}
			continue
		}
		cur, err := s.config.Get(k)
		if err == nil && cur == v {
			continue
		}
		if err != nil && !errors.Is(err, deviceconfig.ErrNotFound) {
			return result, fmt.Errorf("read %s: %w", k, err)
		}
		if err := s.config.Set(k, v); err != nil {
			return result, fmt.Errorf("apply %s: %w", k, err)
		}
		result.Applied = append(result.Applied, k)
	}

	now := s.clock.Now().UTC()
	state.Version = doc.Version
	state.Checksum = managedSum
	state.PulledAt = &now
	if err := s.state.PutSyncState(ctx, state); err != nil {
		return result, err
	}
	if s.snapshots != nil {
		if err := s.snapshots.Save(snapshotKey, doc); err != nil {
			s.logger.Warn("failed to save cloud config snapshot", "error", err)
		}
	}

	s.logger.Info("cloud config applied",
		"version", doc.Version,
		"applied", len(result.Applied),
		"cleared", len(result.Cleared),
		"rejected", len(result.Rejected),
	)
	result.Status = StatusApplied
	return result, nil
}

func (s *Service) reject(result PullResult, reason string) PullResult {
	s.logger.Warn("cloud config rejected", "version", result.Version, "reason", reason)
	result.Status = StatusRejected
	result.Reason = reason
	return result
}

func (s *Service) checkSchema(schema string) string {
	v, err := version.NewVersion(schema)
	if err != nil {
		return fmt.Sprintf("invalid schema %q", schema)
	}
	if !s.constraint.Check(v) {
		return fmt.Sprintf("unsupported schema %s", schema)
	}
	return ""
}

// Push publishes the local managed keys when they differ from what was last
// exchanged. ErrConflict means the portal moved on and a pull is required.
func (s *Service) Push(ctx context.Context) (PushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.push(ctx)
	switch {
	case errors.Is(err, ErrConflict):
		pushTotal.WithLabelValues(StatusConflict).Inc()
	case err != nil:
		pushTotal.WithLabelValues("error").Inc()
	default:
		pushTotal.WithLabelValues(result.Status).Inc()
	}
	return result, err
}

func (s *Service) push(ctx context.Context) (PushResult, error) {
	local, err := s.localSettings()
	if err != nil {
		return PushResult{}, err
	}
	state, err := s.state.GetSyncState(ctx)
	if err != nil {
		return PushResult{}, err
	}

	sum := Checksum(local)
	result := PushResult{Version: state.Version, Checksum: sum, Keys: len(local)}
	if sum == state.Checksum || (state.Checksum == "" && len(local) == 0) {
		result.Status = StatusSkipped
		return result, nil
	}

	doc := model.CloudDocument{Schema: CurrentSchema, Checksum: sum, Settings: local}
	newVersion, err := s.client.Publish(ctx, doc, state.Version)
	if errors.Is(err, ErrConflict) {
		result.Status = StatusConflict
		return result, fmt.Errorf("publish at version %d: %w", state.Version, ErrConflict)
	}
	if err != nil {
		return result, err
	}

	now := s.clock.Now().UTC()
	state.Version = newVersion
	state.Checksum = sum
	state.PushedAt = &now
	if err := s.state.PutSyncState(ctx, state); err != nil {
		return result, err
	}

	s.logger.Info("cloud config published", "version", newVersion, "keys", len(local))
	result.Status = StatusPublished
	result.Version = newVersion
	return result, nil
}

func (s *Service) localSettings() (map[string]string, error) {
	local := map[string]string{}
	for k := range s.managed {
		v, err := s.config.Get(k)
		if errors.Is(err, deviceconfig.ErrNotFound) || errors.Is(err, deviceconfig.ErrInvalidKey) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		local[k] = v
	}
	return local, nil
}

// Sync pulls, then pushes local edits. A push conflict triggers one more
// pull and push, after which the portal's state wins.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	var out SyncResult
	var err error

	if out.Pull, err = s.Pull(ctx); err != nil {
		return out, fmt.Errorf("pull: %w", err)
	}
	out.Push, err = s.Push(ctx)
	if errors.Is(err, ErrConflict) {
		s.logger.Info("cloud config conflict, pulling again")
		if out.Pull, err = s.Pull(ctx); err != nil {
			return out, fmt.Errorf("pull after conflict: %w", err)
		}
		out.Push, err = s.Push(ctx)
	}
	if err != nil {
		return out, fmt.Errorf("push: %w", err)
	}
	return out, nil
}

// NewSnapshots returns the repository that keeps the last applied document
// under root.
func NewSnapshots(fs afero.Fs, root string) *settings.Repository[model.CloudDocument] {
	return settings.NewRepository[model.CloudDocument](fs, root, "managedConfig", serializer.CloudConfigSerializer{})
}
