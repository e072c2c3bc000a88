package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oddsmith/arbiter/config"
	"github.com/oddsmith/arbiter/errors"
)

// ConfigCmd represents the config command - configuration management
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage arbiter configuration",
	Long: `Manage arbiter configuration.

Configuration lives in a TOML file (default ~/.config/arbiter/arbiter.toml)
and can be overridden with ARBITER_* environment variables.

Config commands:
  arbiter config show                        # Show effective configuration
  arbiter config set jobs scan_interval_minutes 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// ConfigShowCmd prints the effective configuration
var ConfigShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShow()
	},
}

// ConfigSetCmd updates a single setting in the config file
var ConfigSetCmd = &cobra.Command{
	Use:   "set <section> <key> <value>",
	Short: "Update a configuration setting",
	Long: `Update a single setting in the config file.

A running daemon picks up job interval changes without a restart; other
settings apply on the next start. A rotating backup of the config file
is written before each change.

Examples:
  arbiter config set jobs scan_interval_minutes 30
  arbiter config set server port 9000`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigSet(args[0], args[1], args[2])
	},
}

func init() {
	ConfigCmd.AddCommand(ConfigShowCmd)
	ConfigCmd.AddCommand(ConfigSetCmd)
}

func runConfigShow() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	fmt.Printf("Config file: %s\n\n", config.Path())

	fmt.Printf("[database]\n")
	fmt.Printf("path = %q\n\n", cfg.Database.Path)

	fmt.Printf("[server]\n")
	fmt.Printf("port = %d\n", cfg.Server.Port)
	fmt.Printf("allowed_origins = %v\n\n", cfg.Server.AllowedOrigins)

	fmt.Printf("[jobs]\n")
	fmt.Printf("trigger_wait_ms = %d\n", cfg.Jobs.TriggerWaitMs)
	fmt.Printf("pause_poll_ms = %d\n", cfg.Jobs.PausePollMs)
	fmt.Printf("scan_interval_minutes = %d\n", cfg.Jobs.ScanIntervalMinutes)
	fmt.Printf("investment_interval_minutes = %d\n", cfg.Jobs.InvestmentIntervalMinutes)
	fmt.Printf("endo_arb_interval_minutes = %d\n", cfg.Jobs.EndoArbIntervalMinutes)
	fmt.Printf("watch_poll_interval_minutes = %d\n", cfg.Jobs.WatchPollIntervalMinutes)
	fmt.Printf("cleanup_after_days = %d\n\n", cfg.Jobs.CleanupAfterDays)

	fmt.Printf("[watch]\n")
	fmt.Printf("requests_per_minute = %d\n", cfg.Watch.RequestsPerMinute)
	fmt.Printf("burst = %d\n\n", cfg.Watch.Burst)

	fmt.Printf("[auth]\n")
	fmt.Printf("session_expiry_hours = %d\n", cfg.Auth.SessionExpiryHours)
	return nil
}

func runConfigSet(section, key, raw string) error {
	if err := config.UpdateSetting(config.Path(), section, key, parseValue(raw)); err != nil {
		return errors.Wrapf(err, "failed to update %s.%s", section, key)
	}

	fmt.Printf("Updated %s.%s = %s\n", section, key, raw)
	return nil
}

// parseValue keeps numeric and boolean settings typed in the TOML file.
func parseValue(raw string) interface{} {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
