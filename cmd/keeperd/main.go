package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/seantiz/keeper/internal/api"
	"github.com/seantiz/keeper/internal/asset"
	"github.com/seantiz/keeper/internal/cloudconfig"
	"github.com/seantiz/keeper/internal/config"
	"github.com/seantiz/keeper/internal/deviceconfig"
	"github.com/seantiz/keeper/internal/engine"
	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/offsite"
	"github.com/seantiz/keeper/internal/runner"
	"github.com/seantiz/keeper/internal/screenshot"
	"github.com/seantiz/keeper/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("keeperd: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"config_root", cfg.ConfigRoot,
		"cloud", cfg.CloudEnabled(),
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := db.FailInterruptedJobs(ctx, "interrupted by daemon restart")
	if err != nil {
		log.Fatalf("failed to recover jobs: %v", err)
	}
	if n > 0 {
		logger.Warn("failed interrupted jobs", "count", n)
	}

	fs := afero.NewOsFs()
	clock := clockwork.NewRealClock()

	settings := asset.NewSettings(fs, cfg.SettingsRoot)
	device := deviceconfig.New(fs, cfg.ConfigRoot)
	assets := asset.NewService(db, settings, logger)
	shots := screenshot.NewService(db, settings.Screenshot, fs, screenshot.Options{
		Root:   cfg.ScreenshotRoot,
		Policy: screenshot.PolicyByCount,
		Clock:  clock,
		Logger: logger,
	})
	replicas := offsite.NewService(db, settings.Offsite, offsite.NewLogReplicator(clock, logger), logger)

	reg := runner.NewRegistry()
	reg.Register(runner.ScreenshotPrune{Pruner: shots})
	reg.Register(runner.OffsiteReplicate{Replicator: replicas})

	var cloud *cloudconfig.Service
	if cfg.CloudEnabled() {
		cloud = cloudconfig.NewService(
			cloudconfig.NewHTTPClient(cfg.CloudURL, cfg.DeviceID, cfg.CloudToken),
			device, db,
			cloudconfig.Options{
				Clock:     clock,
				Snapshots: cloudconfig.NewSnapshots(fs, cfg.SettingsRoot),
				Logger:    logger,
			},
		)
		reg.Register(runner.CloudSync{Syncer: cloud})
	} else {
		logger.Warn("cloud portal not configured, cloud config sync disabled")
	}

	// Jobs still running at shutdown are failed by FailInterruptedJobs on
	// the next start.
	eng := engine.NewEngine(db, reg, clock, logger)

	if cloud != nil && cfg.SyncInterval > 0 {
		go eng.Every(ctx, cfg.SyncInterval, func() *model.Job {
			return &model.Job{Kind: model.KindCloudSync}
		})
	}

	srv := api.NewServer(cfg.ListenAddr, db, api.Services{
		Assets:       assets,
		Screenshots:  shots,
		Cloud:        cloud,
		DeviceConfig: device,
		Engine:       eng,
	}, logger)

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
