package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "arbiter.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"http://127.0.0.1",
	})

	// Job controller defaults
	v.SetDefault("jobs.trigger_wait_ms", 500) // best-effort wait for the new job id
	v.SetDefault("jobs.pause_poll_ms", 250)
	v.SetDefault("jobs.scan_interval_minutes", 0) // schedules disabled unless configured
	v.SetDefault("jobs.investment_interval_minutes", 0)
	v.SetDefault("jobs.endo_arb_interval_minutes", 0)
	v.SetDefault("jobs.watch_poll_interval_minutes", 15)
	v.SetDefault("jobs.cleanup_after_days", 30)

	// Watch poller defaults
	v.SetDefault("watch.requests_per_minute", 30) // polite polling of market sources
	v.SetDefault("watch.burst", 5)

	// Auth defaults
	v.SetDefault("auth.session_expiry_hours", 24)
}
