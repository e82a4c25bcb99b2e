package cli

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seantiz/keeper/internal/model"
)

func (a *app) assetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Manage protected assets",
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			assets, err := a.svc.Assets.List(cmd.Context(), all)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "KEY", "TYPE", "NAME", "HOSTNAME", "STATE")
			for _, as := range assets {
				row(tw, as.Key, as.Type, as.Name, orDash(as.Hostname), assetState(as))
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVarP(&all, "all", "a", false, "Include archived assets")

	var added model.Asset
	var addSleep time.Duration
	add := &cobra.Command{
		Use:   "add <key>",
		Short: "Register an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.pause(cmd, addSleep); err != nil {
				return err
			}
			added.Key = args[0]
			as, err := a.svc.Assets.Add(cmd.Context(), added)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s asset %s\n", as.Type, as.Key)
			return nil
		},
	}
	add.Flags().StringVar(&added.Type, "type", model.AssetAgent, "Asset type (agent or share)")
	add.Flags().StringVar(&added.Name, "name", "", "Display name, defaults to the key")
	add.Flags().StringVar(&added.Hostname, "hostname", "", "Hostname of an agent")
	add.Flags().StringVar(&added.OS, "os", "", "Operating system of an agent")
	addSleepFlag(add, &addSleep)

	type flagSpec struct {
		use, short, verb string
		fn               func(*cobra.Command, string) error
	}
	specs := []flagSpec{
		{"pause", "Stop backups of an asset", "Paused", func(cmd *cobra.Command, key string) error {
			_, err := a.svc.Assets.Pause(cmd.Context(), key)
			return err
		}},
		{"resume", "Resume backups of an asset", "Resumed", func(cmd *cobra.Command, key string) error {
			_, err := a.svc.Assets.Resume(cmd.Context(), key)
			return err
		}},
		{"archive", "Retire an asset, keeping its points", "Archived", func(cmd *cobra.Command, key string) error {
			_, err := a.svc.Assets.Archive(cmd.Context(), key)
			return err
		}},
		{"remove", "Remove an asset with its points and settings", "Removed", func(cmd *cobra.Command, key string) error {
			return a.svc.Assets.Remove(cmd.Context(), key)
		}},
	}

	cmd.AddCommand(list, add)
	for _, spec := range specs {
		spec := spec
		var sleep time.Duration
		sub := &cobra.Command{
			Use:   spec.use + " <key>",
			Short: spec.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.pause(cmd, sleep); err != nil {
					return err
				}
				log.WithField("asset", args[0]).Debugf("Running asset %s", spec.use)
				if err := spec.fn(cmd, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s asset %s\n", spec.verb, args[0])
				return nil
			},
		}
		addSleepFlag(sub, &sleep)
		cmd.AddCommand(sub)
	}
	return cmd
}

func assetState(as *model.Asset) string {
	switch {
	case as.Archived:
		return "archived"
	case as.Paused:
		return "paused"
	default:
		return "active"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
