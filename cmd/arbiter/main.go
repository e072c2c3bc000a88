package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oddsmith/arbiter/cmd/arbiter/commands"
	"github.com/oddsmith/arbiter/logger"
)

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Arbiter - background scan controller for prediction markets",
	Long: `Arbiter - background job controller for prediction-market scanning.

Arbiter runs long-lived scan jobs (market scan, investment scan,
endo-arb scan, watchlist polling) with at most one live job per kind,
and exposes an HTTP control surface to trigger, cancel, pause, and
resume them.

Examples:
  arbiter serve              # Start the daemon and HTTP control surface
  arbiter jobs ls            # List recent job records
  arbiter jobs cancel scan   # Cancel the live market scan
  arbiter watch add <mkt>    # Watch a market
  arbiter users add <name>   # Mint an API access token`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs instead of console output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.UsersCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
