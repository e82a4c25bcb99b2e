package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/keeper/internal/cloudconfig"
)

func (a *app) cloudConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cloudconfig",
		Short: "Synchronize portal-managed device config",
	}

	var pullSleep, pushSleep, syncSleep time.Duration

	pull := &cobra.Command{
		Use:   "pull",
		Short: "Apply the portal's config document to the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.cloud()
			if err != nil {
				return err
			}
			if err := a.pause(cmd, pullSleep); err != nil {
				return err
			}
			result, err := svc.Pull(cmd.Context())
			if err != nil {
				return err
			}
			printPull(cmd.OutOrStdout(), result)
			return nil
		},
	}
	addSleepFlag(pull, &pullSleep)

	push := &cobra.Command{
		Use:   "push",
		Short: "Publish the device's managed config to the portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.cloud()
			if err != nil {
				return err
			}
			if err := a.pause(cmd, pushSleep); err != nil {
				return err
			}
			result, err := svc.Push(cmd.Context())
			if err != nil {
				return err
			}
			printPush(cmd.OutOrStdout(), result)
			return nil
		},
	}
	addSleepFlag(push, &pushSleep)

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull then push, retrying once after a conflict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.cloud()
			if err != nil {
				return err
			}
			if err := a.pause(cmd, syncSleep); err != nil {
				return err
			}
			result, err := svc.Sync(cmd.Context())
			if err != nil {
				return err
			}
			printPull(cmd.OutOrStdout(), result.Pull)
			printPush(cmd.OutOrStdout(), result.Push)
			return nil
		},
	}
	addSleepFlag(syncCmd, &syncSleep)

	cmd.AddCommand(pull, push, syncCmd)
	return cmd
}

func printPull(w io.Writer, r cloudconfig.PullResult) {
	fmt.Fprintf(w, "Pull %s at version %d\n", r.Status, r.Version)
	if len(r.Applied) > 0 {
		fmt.Fprintf(w, "  applied: %s\n", joinOrNone(r.Applied))
	}
	if len(r.Cleared) > 0 {
		fmt.Fprintf(w, "  cleared: %s\n", joinOrNone(r.Cleared))
	}
	if len(r.Rejected) > 0 {
		fmt.Fprintf(w, "  ignored: %s\n", joinOrNone(r.Rejected))
	}
	if r.Reason != "" {
		fmt.Fprintf(w, "  reason: %s\n", r.Reason)
	}
}

func printPush(w io.Writer, r cloudconfig.PushResult) {
	fmt.Fprintf(w, "Push %s at version %d (%s)\n", r.Status, r.Version, plural(r.Keys, "key"))
}
