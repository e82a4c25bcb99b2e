package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/keeper/internal/model"
)

func (a *app) screenshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Inspect and prune boot verification screenshots",
	}

	list := &cobra.Command{
		Use:   "list <asset>",
		Short: "Show each recovery point with its screenshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.svc.Screenshots.Match(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tw := newTable(out, "EPOCH", "TAKEN", "SCREENSHOT", "IMAGE")
			for _, m := range result.Matches {
				status, image := "-", "-"
				if m.Screenshot != nil {
					status = m.Screenshot.Status
					image = orDash(m.Screenshot.ImagePath)
				}
				row(tw, m.Point.Epoch, formatEpoch(m.Point.Epoch), status, image)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if result.LatestVerified != nil {
				fmt.Fprintf(out, "Latest verified point: %d\n", result.LatestVerified.Epoch)
			}
			if len(result.Orphans) > 0 {
				fmt.Fprintf(out, "Orphaned screenshots: %d\n", len(result.Orphans))
			}
			return nil
		},
	}

	var shot model.Screenshot
	var recordSleep time.Duration
	record := &cobra.Command{
		Use:   "record <asset> <epoch>",
		Short: "Record the verification result of a point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			epoch, err := parseEpoch(args[1])
			if err != nil {
				return err
			}
			if err := a.pause(cmd, recordSleep); err != nil {
				return err
			}
			shot.AssetKey = args[0]
			shot.SnapshotEpoch = epoch
			if err := a.svc.Screenshots.Record(cmd.Context(), shot); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s screenshot for %s@%d\n", shot.Status, shot.AssetKey, epoch)
			return nil
		},
	}
	record.Flags().StringVar(&shot.Status, "status", model.ScreenshotSuccess, "Verification outcome (success or failure)")
	record.Flags().StringVar(&shot.ImagePath, "image", "", "Screenshot image, relative to the screenshot root or absolute below it")
	record.Flags().StringVar(&shot.ErrorText, "error", "", "Failure detail")
	addSleepFlag(record, &recordSleep)

	var pruneSleep time.Duration
	prune := &cobra.Command{
		Use:   "prune <asset>",
		Short: "Delete screenshots the retention policy no longer keeps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.pause(cmd, pruneSleep); err != nil {
				return err
			}
			result, err := a.svc.Screenshots.Prune(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Policy %s kept %s, deleted %s\n",
				result.Policy, plural(result.Kept, "screenshot"), plural(len(result.Deleted), "screenshot"))
			return nil
		},
	}
	addSleepFlag(prune, &pruneSleep)

	cmd.AddCommand(list, record, prune)
	return cmd
}
