// Package asset manages the agents and shares registered with the appliance,
// their recovery points and their per-asset settings files.
package asset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/settings"
	"github.com/seantiz/keeper/internal/store"
)

var (
	// ErrInvalidAsset is returned when an asset fails validation.
	ErrInvalidAsset = errors.New("invalid asset")

	// ErrPointLocked is returned when removing a point that is held.
	ErrPointLocked = errors.New("recovery point is locked")
)

// Settings groups the settings repositories of an asset.
type Settings struct {
	Screenshot *settings.Repository[model.ScreenshotSettings]
	Retention  *settings.Repository[model.RetentionSettings]
	Offsite    *settings.Repository[model.OffsiteSettings]
}

// Service exposes asset operations to the CLI and API.
type Service struct {
	store    store.Store
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates an asset service.
func NewService(s store.Store, st Settings, logger *slog.Logger) *Service {
	return &Service{
		store:    s,
		settings: st,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns registered assets, optionally including archived ones.
func (s *Service) List(ctx context.Context, includeArchived bool) ([]*model.Asset, error) {
	return s.store.ListAssets(ctx, includeArchived)
}

// Get returns one asset.
func (s *Service) Get(ctx context.Context, key string) (*model.Asset, error) {
	return s.store.GetAsset(ctx, key)
}

// Add registers a new asset. Name defaults to the key.
func (s *Service) Add(ctx context.Context, a model.Asset) (*model.Asset, error) {
	if !model.ValidKey(a.Key) {
		return nil, fmt.Errorf("%w: bad key %q", ErrInvalidAsset, a.Key)
	}
	if !model.ValidAssetType(a.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidAsset, a.Type)
	}
	if a.Name == "" {
		a.Name = a.Key
	}
	a.Paused = false
	a.Archived = false
	a.CreatedAt = s.now()

	if err := s.store.CreateAsset(ctx, &a); err != nil {
		return nil, err
	}

	s.logger.Info("asset added", "asset", a.Key, "type", a.Type)
	return &a, nil
}

// Pause stops scheduled backups of an asset.
func (s *Service) Pause(ctx context.Context, key string) (*model.Asset, error) {
	return s.setFlags(ctx, key, func(a *model.Asset) { a.Paused = true })
}

// Resume restarts scheduled backups of an asset. Archived assets stay paused.
func (s *Service) Resume(ctx context.Context, key string) (*model.Asset, error) {
	a, err := s.store.GetAsset(ctx, key)
	if err != nil {
		return nil, err
	}
	if a.Archived {
		return nil, fmt.Errorf("%w: %s is archived", ErrInvalidAsset, key)
	}
	return s.setFlags(ctx, key, func(a *model.Asset) { a.Paused = false })
}

// Archive retires an asset. Its points are kept but it no longer backs up.
func (s *Service) Archive(ctx context.Context, key string) (*model.Asset, error) {
	return s.setFlags(ctx, key, func(a *model.Asset) {
		a.Paused = true
		a.Archived = true
	})
}

func (s *Service) setFlags(ctx context.Context, key string, mutate func(*model.Asset)) (*model.Asset, error) {
	a, err := s.store.GetAsset(ctx, key)
	if err != nil {
		return nil, err
	}
	mutate(a)
	if err := s.store.UpdateAssetFlags(ctx, key, a.Paused, a.Archived); err != nil {
		return nil, err
	}

	s.logger.Info("asset updated", "asset", key, "paused", a.Paused, "archived", a.Archived)
	return a, nil
}

// Remove deletes an asset, its catalogue rows and its settings files.
func (s *Service) Remove(ctx context.Context, key string) error {
	if err := s.store.DeleteAsset(ctx, key); err != nil {
		return err
	}

	for _, del := range []func(string) error{
		s.settings.Screenshot.Delete,
		s.settings.Retention.Delete,
		s.settings.Offsite.Delete,
	} {
		if err := del(key); err != nil {
			return fmt.Errorf("remove settings: %w", err)
		}
	}

	s.logger.Info("asset removed", "asset", key)
	return nil
}

// Points lists an asset's recovery points by ascending epoch.
func (s *Service) Points(ctx context.Context, key string) ([]model.RecoveryPoint, error) {
	if _, err := s.store.GetAsset(ctx, key); err != nil {
		return nil, err
	}
	return s.store.ListPoints(ctx, key)
}

// AddPoint records a recovery point reported by the backup engine. Reporting
// an existing epoch again refreshes its size and never unlocks it or clears
// its offsite flag. The point is returned as stored.
func (s *Service) AddPoint(ctx context.Context, p model.RecoveryPoint) (*model.RecoveryPoint, error) {
	if _, err := s.store.GetAsset(ctx, p.AssetKey); err != nil {
		return nil, err
	}
	if p.Epoch <= 0 {
		return nil, fmt.Errorf("%w: epoch must be positive", ErrInvalidAsset)
	}
	if p.SizeBytes < 0 {
		return nil, fmt.Errorf("%w: size must not be negative", ErrInvalidAsset)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if err := s.store.UpsertPoint(ctx, &p); err != nil {
		return nil, err
	}
	return s.store.GetPoint(ctx, p.AssetKey, p.Epoch)
}

// RemovePoint deletes a recovery point unless it is locked.
func (s *Service) RemovePoint(ctx context.Context, key string, epoch int64) error {
	p, err := s.store.GetPoint(ctx, key, epoch)
	if err != nil {
		return err
	}
	if p.Locked {
		return fmt.Errorf("%w: %s@%d", ErrPointLocked, key, epoch)
	}
	if err := s.store.DeletePoint(ctx, key, epoch); err != nil {
		return err
	}

	s.logger.Info("point removed", "asset", key, "epoch", epoch)
	return nil
}

// ScreenshotSettings returns the asset's screenshot settings or the defaults.
func (s *Service) ScreenshotSettings(ctx context.Context, key string) (model.ScreenshotSettings, error) {
	if _, err := s.store.GetAsset(ctx, key); err != nil {
		return model.ScreenshotSettings{}, err
	}
	return s.settings.Screenshot.LoadOr(key, model.DefaultScreenshotSettings())
}

// SetScreenshotSettings saves the asset's screenshot settings.
func (s *Service) SetScreenshotSettings(ctx context.Context, key string, v model.ScreenshotSettings) error {
	if _, err := s.store.GetAsset(ctx, key); err != nil {
		return err
	}
	return s.settings.Screenshot.Save(key, v)
}

// RetentionSettings returns the asset's retention settings.
func (s *Service) RetentionSettings(ctx context.Context, key string) (model.RetentionSettings, error) {
	if _, err := s.store.GetAsset(ctx, key); err != nil {
		return model.RetentionSettings{}, err
	}
	return s.settings.Retention.Load(key)
}

// SetRetentionSettings saves the asset's retention settings.
func (s *Service) SetRetentionSettings(ctx context.Context, key string, v model.RetentionSettings) error {
	if _, err := s.store.GetAsset(ctx, key); err != nil {
		return err
	}
	return s.settings.Retention.Save(key, v)
}

// OffsiteSettings returns the asset's offsite settings or the defaults.
func (s *Service) OffsiteSettings(ctx context.Context, key string) (model.OffsiteSettings, error) {
	if _, err := s.store.GetAsset(ctx, key); err != nil {
		return model.OffsiteSettings{}, err
	}
	return s.settings.Offsite.LoadOr(key, model.DefaultOffsiteSettings())
}

// SetOffsiteSettings saves the asset's offsite settings.
func (s *Service) SetOffsiteSettings(ctx context.Context, key string, v model.OffsiteSettings) error {
	if _, err := s.store.GetAsset(ctx, key); err != nil {
		return err
	}
	return s.settings.Offsite.Save(key, v)
}
