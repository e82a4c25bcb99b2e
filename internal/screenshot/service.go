package screenshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/store"
)

var (
	// ErrPointNotFound is returned when recording a screenshot for a point
	// the catalogue does not know.
	ErrPointNotFound = errors.New("recovery point not found")

	// ErrInvalidScreenshot is returned for results with an unknown status or
	// an image outside the screenshot root.
	ErrInvalidScreenshot = errors.New("invalid screenshot")
)

// Catalogue is the subset of the store the screenshot service needs.
type Catalogue interface {
	GetAsset(ctx context.Context, key string) (*model.Asset, error)
	GetPoint(ctx context.Context, assetKey string, epoch int64) (*model.RecoveryPoint, error)
	ListPoints(ctx context.Context, assetKey string) ([]model.RecoveryPoint, error)
	ListScreenshots(ctx context.Context, assetKey string) ([]model.Screenshot, error)
	UpsertScreenshot(ctx context.Context, s *model.Screenshot) error
	DeleteScreenshot(ctx context.Context, assetKey string, epoch int64) error
}

// SettingsSource loads an asset's screenshot settings.
type SettingsSource interface {
	LoadOr(assetKey string, def model.ScreenshotSettings) (model.ScreenshotSettings, error)
}

// PruneResult reports what a retention run did for one asset.
type PruneResult struct {
	AssetKey string  `json:"asset_key"`
	Policy   string  `json:"policy"`
	Kept     int     `json:"kept"`
	Deleted  []int64 `json:"deleted"`
	Orphans  int     `json:"orphans"`
}

// DefaultRoot is where the verification hypervisor writes screenshot images.
const DefaultRoot = "/datto/screenshots"

// Options configures a Service. Zero fields take defaults.
type Options struct {
	Root   string
	Policy string
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Service records screenshot results and applies retention. Image files are
// only ever removed from below its root.
type Service struct {
	catalogue Catalogue
	settings  SettingsSource
	fs        afero.Fs
	root      string
	policy    string
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewService creates a screenshot service.
func NewService(c Catalogue, settings SettingsSource, fs afero.Fs, opts Options) *Service {
	s := &Service{
		catalogue: c,
		settings:  settings,
		fs:        fs,
		root:      filepath.Clean(opts.Root),
		policy:    opts.Policy,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	if opts.Root == "" {
		s.root = DefaultRoot
	}
	if s.policy == "" {
		s.policy = PolicyByCount
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Root returns the directory screenshot images must live in.
func (s *Service) Root() string { return s.root }

// imagePath resolves p against the root and reports whether the result stays
// below it.
func (s *Service) imagePath(p string) (string, bool) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = filepath.Clean(p)
	return p, strings.HasPrefix(p, s.root+string(filepath.Separator))
}

// Match pairs the asset's points with its screenshots.
func (s *Service) Match(ctx context.Context, assetKey string) (MatchResult, error) {
	if _, err := s.catalogue.GetAsset(ctx, assetKey); err != nil {
		return MatchResult{}, err
	}

	points, err := s.catalogue.ListPoints(ctx, assetKey)
	if err != nil {
		return MatchResult{}, fmt.Errorf("list points: %w", err)
	}
	shots, err := s.catalogue.ListScreenshots(ctx, assetKey)
	if err != nil {
		return MatchResult{}, fmt.Errorf("list screenshots: %w", err)
	}
	return MatchPoints(points, shots), nil
}

// Record stores a verification result. The point must exist. A relative
// image path is taken relative to the root.
func (s *Service) Record(ctx context.Context, shot model.Screenshot) error {
	if shot.Status != model.ScreenshotSuccess && shot.Status != model.ScreenshotFailure {
		return fmt.Errorf("%w: status %q", ErrInvalidScreenshot, shot.Status)
	}
	if shot.ImagePath != "" {
		p, ok := s.imagePath(shot.ImagePath)
		if !ok {
			return fmt.Errorf("%w: image %q is outside %s", ErrInvalidScreenshot, shot.ImagePath, s.root)
		}
		shot.ImagePath = p
	}

	_, err := s.catalogue.GetPoint(ctx, shot.AssetKey, shot.SnapshotEpoch)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s@%d", ErrPointNotFound, shot.AssetKey, shot.SnapshotEpoch)
	}
	if err != nil {
		return fmt.Errorf("get point: %w", err)
	}

	if shot.TakenAt.IsZero() {
		shot.TakenAt = s.clock.Now().UTC()
	}
	if err := s.catalogue.UpsertScreenshot(ctx, &shot); err != nil {
		return fmt.Errorf("record screenshot: %w", err)
	}

	s.logger.Info("screenshot recorded",
		"asset", shot.AssetKey,
		"epoch", shot.SnapshotEpoch,
		"status", shot.Status,
	)
	return nil
}

// Prune deletes the screenshots the retention policy selects, image file first.
func (s *Service) Prune(ctx context.Context, assetKey string) (PruneResult, error) {
	settings, err := s.settings.LoadOr(assetKey, model.DefaultScreenshotSettings())
	if err != nil {
		return PruneResult{}, fmt.Errorf("load screenshot settings: %w", err)
	}

	policy, err := Configure(s.policy, settings)
	if err != nil {
		return PruneResult{}, err
	}

	matched, err := s.Match(ctx, assetKey)
	if err != nil {
		return PruneResult{}, err
	}

	victims := policy.Select(matched)
	result := PruneResult{
		AssetKey: assetKey,
		Policy:   policy.Name(),
		Deleted:  []int64{},
		Orphans:  len(matched.Orphans),
	}

	for _, v := range victims {
		if v.ImagePath != "" {
			if p, ok := s.imagePath(v.ImagePath); !ok {
				s.logger.Warn("screenshot image outside root left in place", "asset", assetKey, "epoch", v.SnapshotEpoch, "image", v.ImagePath)
			} else if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return result, fmt.Errorf("remove screenshot image %s: %w", p, err)
			}
		}
		if err := s.catalogue.DeleteScreenshot(ctx, assetKey, v.SnapshotEpoch); err != nil && !errors.Is(err, store.ErrNotFound) {
			return result, fmt.Errorf("delete screenshot %d: %w", v.SnapshotEpoch, err)
		}
		result.Deleted = append(result.Deleted, v.SnapshotEpoch)
	}

	total := len(matched.Verified()) + len(matched.Orphans)
	result.Kept = total - len(result.Deleted)

	s.logger.Info("screenshot retention completed",
		"asset", assetKey,
		"policy", result.Policy,
		"deleted", len(result.Deleted),
		"kept", result.Kept,
	)
	return result, nil
}
