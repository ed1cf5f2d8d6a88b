package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/raypak"
)

// statusCmd refreshes once and prints the readings.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the heater's current readings",
	Long: `Refresh the heater once and print every reading as a table.

With --check-auth only the credentials are tested, using the lightweight
connectivity call, and nothing is printed on success beyond a short
confirmation.

Example:
  raypak status -c config.yaml
  raypak status -c config.yaml --check-auth`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	statusCmd.Flags().Bool("check-auth", false, "only verify the token")
	_ = statusCmd.MarkFlagRequired("config")
}

func runStatus(cmd *cobra.Command, args []string) error {
	m, cfg, _, err := loadMonitor(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Timeout.Duration())
	defer cancel()

	out := cmd.OutOrStdout()

	if checkAuth, _ := cmd.Flags().GetBool("check-auth"); checkAuth {
		if err := m.Validate(ctx); err != nil {
			if errors.Is(err, raypak.ErrAuth) {
				return fmt.Errorf("credentials rejected: %w", err)
			}
			return fmt.Errorf("device API unreachable: %w", err)
		}
		fmt.Fprintf(out, "Token accepted by %s\n", cfg.Server)
		return nil
	}

	snap, err := m.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	printStatus(out, snap, raypak.DeriveAll(snap))
	return nil
}

// printStatus writes a two-column table of readings followed by the
// refresh time.
func printStatus(w io.Writer, snap raypak.Snapshot, readings []raypak.Reading) {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("READING", "VALUE")
	for _, r := range readings {
		value := r.Value.String()
		if r.Unit != "" && !r.Value.IsAbsent() {
			value += " " + r.Unit
		}
		table.AddRow(r.Name, value)
	}

	fmt.Fprintln(w, table)
	fmt.Fprintf(w, "\nRevision %d, fetched %s\n", snap.Revision, snap.FetchedAt.Format(time.RFC3339))
}
