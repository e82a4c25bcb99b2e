// Package offsite marks recovery points as replicated once the replication
// transport has accepted them. The transport itself lives outside keeper.
package offsite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/store"
)

// ErrReplicationDisabled is returned for assets that must not be replicated:
// paused or archived assets, or replication set to never.
var ErrReplicationDisabled = errors.New("offsite replication disabled")

// Replicator sends one recovery point offsite.
type Replicator interface {
	Push(ctx context.Context, assetKey string, epoch int64) error
}

// Catalogue is the subset of the store the service needs.
type Catalogue interface {
	GetAsset(ctx context.Context, key string) (*model.Asset, error)
	ListPoints(ctx context.Context, assetKey string) ([]model.RecoveryPoint, error)
	MarkPointOffsite(ctx context.Context, assetKey string, epoch int64) error
}

// SettingsSource loads an asset's offsite settings.
type SettingsSource interface {
	LoadOr(assetKey string, def model.OffsiteSettings) (model.OffsiteSettings, error)
}

// Result lists the points handled by one Replicate call.
type Result struct {
	AssetKey   string  `json:"asset_key"`
	Replicated []int64 `json:"replicated"`
	Skipped    []int64 `json:"skipped"`
}

// Service replicates recovery points through a Replicator.
type Service struct {
	catalogue  Catalogue
	settings   SettingsSource
	replicator Replicator
	logger     *slog.Logger
}

// NewService creates an offsite service.
func NewService(c Catalogue, settings SettingsSource, r Replicator, logger *slog.Logger) *Service {
	return &Service{catalogue: c, settings: settings, replicator: r, logger: logger}
}

// Replicate pushes every point of assetKey that is not offsite yet, oldest
// first, and marks each one offsite after the push succeeds. In interval
// mode a point closer than the interval to the nearest older offsite point
// is skipped. A point deleted while its push is in flight is left deleted. A positive nightly retention limit caps the pushes per call.
func (s *Service) Replicate(ctx context.Context, assetKey string) (Result, error) {
	result := Result{AssetKey: assetKey, Replicated: []int64{}, Skipped: []int64{}}

	a, err := s.catalogue.GetAsset(ctx, assetKey)
	if err != nil {
		return result, err
	}
	if a.Paused || a.Archived {
		return result, fmt.Errorf("%w: asset %s is paused or archived", ErrReplicationDisabled, assetKey)
	}

	cfg, err := s.settings.LoadOr(assetKey, model.DefaultOffsiteSettings())
	if err != nil {
		return result, fmt.Errorf("load offsite settings: %w", err)
	}
	if cfg.Replication == model.ReplicationNever {
		return result, fmt.Errorf("%w: asset %s is set to never replicate", ErrReplicationDisabled, assetKey)
	}

	points, err := s.catalogue.ListPoints(ctx, assetKey)
	if err != nil {
		return result, err
	}

	var offsite []int64
	for _, p := range points {
		if p.Offsite {
			offsite = append(offsite, p.Epoch)
		}
	}

	for _, p := range points {
		if p.Offsite {
			continue
		}
		if cfg.NightlyRetentionLimit > 0 && len(result.Replicated) >= cfg.NightlyRetentionLimit {
			result.Skipped = append(result.Skipped, p.Epoch)
			continue
		}
		if cfg.Replication == model.ReplicationInterval {
			if prev, ok := offsiteBefore(offsite, p.Epoch); ok && p.Epoch-prev < int64(cfg.IntervalS) {
				result.Skipped = append(result.Skipped, p.Epoch)
				continue
			}
		}

		if err := s.replicator.Push(ctx, assetKey, p.Epoch); err != nil {
			return result, fmt.Errorf("replicate %s@%d: %w", assetKey, p.Epoch, err)
		}
		err := s.catalogue.MarkPointOffsite(ctx, assetKey, p.Epoch)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Info("point removed during replication", "asset", assetKey, "epoch", p.Epoch)
			continue
		}
		if err != nil {
			return result, err
		}
		result.Replicated = append(result.Replicated, p.Epoch)
		i, _ := slices.BinarySearch(offsite, p.Epoch)
		offsite = slices.Insert(offsite, i, p.Epoch)
	}

	s.logger.Info("offsite replication finished",
		"asset", assetKey,
		"priority", cfg.Priority,
		"replicated", len(result.Replicated),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

// offsiteBefore returns the newest epoch in the sorted offsite list that is
// older than epoch.
func offsiteBefore(offsite []int64, epoch int64) (int64, bool) {
	i, _ := slices.BinarySearch(offsite, epoch)
	if i == 0 {
		return 0, false
	}
	return offsite[i-1], true
}

// Transfer is one point accepted by a LogReplicator.
type Transfer struct {
	AssetKey string    `json:"asset_key"`
	Epoch    int64     `json:"epoch"`
	At       time.Time `json:"at"`
}

// LogReplicator accepts every point immediately and records the transfer.
// It stands in for the appliance's replication transport.
type LogReplicator struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	logger    *slog.Logger
	transfers []Transfer
}

// NewLogReplicator creates a LogReplicator.
func NewLogReplicator(clock clockwork.Clock, logger *slog.Logger) *LogReplicator {
	return &LogReplicator{clock: clock, logger: logger}
}

func (r *LogReplicator) Push(ctx context.Context, assetKey string, epoch int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, Transfer{AssetKey: assetKey, Epoch: epoch, At: r.clock.Now().UTC()})
	r.logger.Debug("point replicated", "asset", assetKey, "epoch", epoch)
	return nil
}

// Transfers returns a copy of the recorded transfers.
func (r *LogReplicator) Transfers() []Transfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transfer(nil), r.transfers...)
}
