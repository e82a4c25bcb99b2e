package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/keeper/internal/model"
)

func parseEpoch(s string) (int64, error) {
	epoch, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("epoch must be an integer: %q", s)
	}
	return epoch, nil
}

func (a *app) pointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "point",
		Short: "Manage recovery points",
	}

	list := &cobra.Command{
		Use:   "list <asset>",
		Short: "List an asset's recovery points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := a.svc.Assets.Points(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "EPOCH", "TAKEN", "SIZE", "OFFSITE", "LOCKED")
			for _, p := range points {
				row(tw, p.Epoch, formatEpoch(p.Epoch), formatSize(p.SizeBytes), yesNo(p.Offsite), yesNo(p.Locked))
			}
			return tw.Flush()
		},
	}

	var point model.RecoveryPoint
	var addSleep time.Duration
	add := &cobra.Command{
		Use:   "add <asset> <epoch>",
		Short: "Record a recovery point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			epoch, err := parseEpoch(args[1])
			if err != nil {
				return err
			}
			if err := a.pause(cmd, addSleep); err != nil {
				return err
			}
			point.AssetKey = args[0]
			point.Epoch = epoch
			p, err := a.svc.Assets.AddPoint(cmd.Context(), point)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added point %s@%d (%s)\n", p.AssetKey, p.Epoch, formatSize(p.SizeBytes))
			return nil
		},
	}
	add.Flags().Int64Var(&point.SizeBytes, "size", 0, "Point size in bytes")
	add.Flags().BoolVar(&point.Offsite, "offsite", false, "Point is already offsite")
	add.Flags().BoolVar(&point.Locked, "locked", false, "Protect the point from removal")
	addSleepFlag(add, &addSleep)

	var removeSleep time.Duration
	remove := &cobra.Command{
		Use:   "remove <asset> <epoch>",
		Short: "Remove an unlocked recovery point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			epoch, err := parseEpoch(args[1])
			if err != nil {
				return err
			}
			if err := a.pause(cmd, removeSleep); err != nil {
				return err
			}
			if err := a.svc.Assets.RemovePoint(cmd.Context(), args[0], epoch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed point %s@%d\n", args[0], epoch)
			return nil
		},
	}
	addSleepFlag(remove, &removeSleep)

	cmd.AddCommand(list, add, remove)
	return cmd
}
