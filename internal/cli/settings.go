package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/keeper/internal/asset"
	"github.com/seantiz/keeper/internal/settings"
)

func (a *app) settingsKind(name string) (asset.Kind, error) {
	kind, ok := a.svc.Assets.SettingsKinds()[name]
	if !ok {
		return asset.Kind{}, fmt.Errorf("unknown settings kind %q (supported: %s)",
			name, strings.Join(asset.KindNames(), ", "))
	}
	return kind, nil
}

func (a *app) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change per-asset settings",
	}

	get := &cobra.Command{
		Use:   "get <asset> <kind>",
		Short: "Print an asset's settings of one kind",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := a.settingsKind(args[1])
			if err != nil {
				return err
			}
			m, err := kind.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printFields(cmd.OutOrStdout(), m)
			return nil
		},
	}

	var sleep time.Duration
	set := &cobra.Command{
		Use:   "set <asset> <kind> <field=value>...",
		Short: "Change fields of an asset's settings",
		Long: "Change fields of an asset's settings. Fields not named keep their " +
			"current value. Values true and false are booleans, whole numbers are integers.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := a.settingsKind(args[1])
			if err != nil {
				return err
			}
			updates, err := parseFields(args[2:])
			if err != nil {
				return err
			}
			if err := a.pause(cmd, sleep); err != nil {
				return err
			}

			current, err := kind.Get(cmd.Context(), args[0])
			switch {
			case errors.Is(err, settings.ErrNotFound):
				current = map[string]any{}
			case err != nil:
				return err
			}
			for k, v := range updates {
				current[k] = v
			}

			saved, err := kind.Set(cmd.Context(), args[0], current)
			if err != nil {
				return err
			}
			printFields(cmd.OutOrStdout(), saved)
			return nil
		},
	}
	addSleepFlag(set, &sleep)

	cmd.AddCommand(get, set)
	return cmd
}

func parseFields(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		out[name] = parseValue(raw)
	}
	return out, nil
}

func parseValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}

func printFields(w io.Writer, m map[string]any) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(w, "%s=%v\n", k, m[k])
	}
}
