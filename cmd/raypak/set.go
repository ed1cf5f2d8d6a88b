package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/raypak"
)

// setCmd groups the write commands.
var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change a heater setting",
}

var setTargetCmd = &cobra.Command{
	Use:   "target <fahrenheit>",
	Short: "Set the target water temperature",
	Long: `Set the target water temperature in °F.

The device accepts whole degrees between 60 and 104; a fraction is dropped.

Example:
  raypak set target 84 -c config.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSetTarget,
}

var setModeCmd = &cobra.Command{
	Use:       "mode <off|heat>",
	Short:     "Set the operation mode",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(raypak.ModeOff), string(raypak.ModeHeat)},
	RunE:      runSetMode,
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.AddCommand(setTargetCmd, setModeCmd)

	setCmd.PersistentFlags().StringP("config", "c", "", "path to config file (required)")
	_ = setCmd.MarkPersistentFlagRequired("config")
}

func runSetTarget(cmd *cobra.Command, args []string) error {
	temperature, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid temperature %q: %w", args[0], err)
	}

	return withHeater(cmd, func(ctx context.Context, h *raypak.Heater) error {
		if err := h.SetTarget(ctx, temperature); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Target temperature set to %d°F\n", int(temperature))
		return nil
	})
}

func runSetMode(cmd *cobra.Command, args []string) error {
	mode := raypak.Mode(args[0])

	return withHeater(cmd, func(ctx context.Context, h *raypak.Heater) error {
		if err := h.SetMode(ctx, mode); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Mode set to %s\n", mode)
		return nil
	})
}

// withHeater builds a Monitor from the config and runs fn against its heater.
func withHeater(cmd *cobra.Command, fn func(ctx context.Context, h *raypak.Heater) error) error {
	m, cfg, _, err := loadMonitor(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Timeout.Duration())
	defer cancel()

	if err := fn(ctx, m.Heater()); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}
