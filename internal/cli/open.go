package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/seantiz/keeper/internal/asset"
	"github.com/seantiz/keeper/internal/cloudconfig"
	"github.com/seantiz/keeper/internal/config"
	"github.com/seantiz/keeper/internal/deviceconfig"
	"github.com/seantiz/keeper/internal/offsite"
	"github.com/seantiz/keeper/internal/screenshot"
	"github.com/seantiz/keeper/internal/store"
)

// OpenServices opens the appliance catalogue and settings the same way
// keeperd does. A missing config file at the default path is not an error.
func OpenServices(path string) (*Services, func() error, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	// Service logs are only shown with --verbose.
	var w io.Writer = io.Discard
	if log.IsLevelEnabled(log.DebugLevel) {
		w = os.Stderr
	}
	logger := config.NewLogger(w, slog.LevelDebug)

	fs := afero.NewOsFs()
	clock := clockwork.NewRealClock()
	settings := asset.NewSettings(fs, cfg.SettingsRoot)

	svc := &Services{
		Assets:       asset.NewService(db, settings, logger),
		Screenshots:  screenshot.NewService(db, settings.Screenshot, fs, screenshot.Options{
			Root:   cfg.ScreenshotRoot,
			Policy: screenshot.PolicyByCount,
			Clock:  clock,
			Logger: logger,
		}),
		DeviceConfig: deviceconfig.New(fs, cfg.ConfigRoot),
		Offsite:      offsite.NewService(db, settings.Offsite, offsite.NewLogReplicator(clock, logger), logger),
	}
	if cfg.CloudEnabled() {
		svc.Cloud = cloudconfig.NewService(
			cloudconfig.NewHTTPClient(cfg.CloudURL, cfg.DeviceID, cfg.CloudToken),
			svc.DeviceConfig, db,
			cloudconfig.Options{
				Clock:     clock,
				Snapshots: cloudconfig.NewSnapshots(fs, cfg.SettingsRoot),
				Logger:    logger,
			},
		)
	}
	return svc, db.Close, nil
}

func loadConfig(path string) (config.Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("expand config path: %w", err)
	}

	_, err = os.Stat(expanded)
	switch {
	case err == nil:
		log.WithField("path", expanded).Debug("Using config file")
		return config.LoadFile(expanded)
	case errors.Is(err, os.ErrNotExist) && path == defaultConfigPath:
		return config.Load()
	default:
		return config.Config{}, fmt.Errorf("config file: %w", err)
	}
}
