// Package cli implements keeperctl, the appliance maintenance console.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seantiz/keeper/internal/asset"
	"github.com/seantiz/keeper/internal/cloudconfig"
	"github.com/seantiz/keeper/internal/deviceconfig"
	"github.com/seantiz/keeper/internal/offsite"
	"github.com/seantiz/keeper/internal/screenshot"
)

// verboseLogKey enables debug logging when set to `true`, like --verbose.
const verboseLogKey = "KEEPER_LOG_VERBOSE"

const defaultConfigPath = "~/.keeperctl.yaml"

var errCloudDisabled = errors.New("cloud portal not configured")

// Services are the application services the commands forward to. Cloud is
// nil when no portal is configured.
type Services struct {
	Assets       *asset.Service
	Screenshots  *screenshot.Service
	Cloud        *cloudconfig.Service
	DeviceConfig *deviceconfig.Store
	Offsite      *offsite.Service
}

// Opener builds the services from the config file at path. The returned
// func releases them.
type Opener func(path string) (*Services, func() error, error)

type app struct {
	open  Opener
	clock clockwork.Clock

	configPath string
	verbose    bool

	svc   *Services
	close func() error
}

// NewRoot creates the keeperctl command tree.
func NewRoot(open Opener, clock clockwork.Clock) *cobra.Command {
	a := &app{open: open, clock: clock}

	root := &cobra.Command{
		Use:   "keeperctl",
		Short: "Manage the backup appliance's assets, settings and cloud config",

		SilenceUsage: true,

		// Execute reports the error, so cobra must not print it too.
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output")
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "Path to the keeperctl config file")

	root.AddCommand(
		a.assetCmd(),
		a.pointCmd(),
		a.screenshotCmd(),
		a.settingsCmd(),
		a.cloudConfigCmd(),
		a.configCmd(),
		a.offsiteCmd(),
	)
	return root
}

// Execute runs keeperctl against the local appliance.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	root := NewRoot(OpenServices, clockwork.NewRealClock())
	if err := root.Execute(); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.verbose {
		log.SetLevel(log.DebugLevel)
	}

	svc, closeFn, err := a.open(a.configPath)
	if err != nil {
		return fmt.Errorf("open services: %w", err)
	}
	a.svc = svc
	a.close = closeFn
	log.WithField("command", cmd.CommandPath()).Debug("Services ready")
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

func (a *app) cloud() (*cloudconfig.Service, error) {
	if a.svc.Cloud == nil {
		return nil, errCloudDisabled
	}
	return a.svc.Cloud, nil
}

// addSleepFlag registers --sleep on a mutating command.
func addSleepFlag(cmd *cobra.Command, d *time.Duration) {
	cmd.Flags().DurationVar(d, "sleep", 0, "Wait this long before running")
}

// pause waits d before a mutating command calls its service.
func (a *app) pause(cmd *cobra.Command, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	log.WithField("duration", d).Debug("Sleeping before run")
	select {
	case <-a.clock.After(d):
		return nil
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}
}
