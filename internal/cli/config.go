package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write device config keys",
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.svc.DeviceConfig.Get(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every set key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := a.svc.DeviceConfig.List()
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "KEY", "VALUE")
			for _, k := range keys {
				row(tw, k, a.svc.DeviceConfig.GetOr(k, ""))
			}
			return tw.Flush()
		},
	}

	var setSleep time.Duration
	set := &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Set a key, or touch it as a flag when no value is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.pause(cmd, setSleep); err != nil {
				return err
			}
			if len(args) == 1 {
				return a.svc.DeviceConfig.Touch(args[0])
			}
			return a.svc.DeviceConfig.Set(args[0], args[1])
		},
	}
	addSleepFlag(set, &setSleep)

	var clearSleep time.Duration
	clearCmd := &cobra.Command{
		Use:   "clear <key>",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.pause(cmd, clearSleep); err != nil {
				return err
			}
			return a.svc.DeviceConfig.Clear(args[0])
		},
	}
	addSleepFlag(clearCmd, &clearSleep)

	cmd.AddCommand(get, list, set, clearCmd)
	return cmd
}
