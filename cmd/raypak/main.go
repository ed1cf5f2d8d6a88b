// Package main is the entry point for the raypak CLI.
//
// raypak can be used either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	raypak serve -c config.yaml          # Poll the heater and serve the dashboard
//	raypak status -c config.yaml         # Print current readings once
//	raypak set target 84 -c config.yaml  # Change the setpoint
//	raypak set mode heat -c config.yaml  # Change the operation mode
//	raypak validate -c config.yaml       # Validate configuration
//	raypak version                       # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "raypak",
	Short: "Monitor and control a Raypak pool heater",
	Long: `raypak polls a Raypak pool heater through its cloud device API and
serves a live dashboard of its readings.

Quick start:
  1. Create a config file (raypak.yaml)
  2. Run: raypak serve -c raypak.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  token: ${RAYPAK_TOKEN}
  poll_interval: 30s
  port: 8080`,
	SilenceUsage: true,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this raypak binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "raypak %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
