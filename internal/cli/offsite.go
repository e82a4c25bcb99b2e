package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) offsiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offsite",
		Short: "Replicate recovery points offsite",
	}

	var sleep time.Duration
	replicate := &cobra.Command{
		Use:   "replicate <asset>",
		Short: "Send an asset's pending points offsite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.pause(cmd, sleep); err != nil {
				return err
			}
			result, err := a.svc.Offsite.Replicate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, epoch := range result.Replicated {
				fmt.Fprintf(out, "Replicated %s@%d\n", result.AssetKey, epoch)
			}
			fmt.Fprintf(out, "Replicated %s, skipped %d\n", plural(len(result.Replicated), "point"), len(result.Skipped))
			return nil
		},
	}
	addSleepFlag(replicate, &sleep)

	cmd.AddCommand(replicate)
	return cmd
}
