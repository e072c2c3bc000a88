// Package config manages the arbiter configuration: a TOML file loaded
// through viper, overridable by ARBITER_* environment variables, with
// hot reload via fsnotify.
package config

// Config represents the core arbiter configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the arbiter control-plane server
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DefaultServerPort is used when no port is configured.
const DefaultServerPort = 8710

// JobsConfig configures the background job controller
type JobsConfig struct {
	// TriggerWaitMs bounds how long a trigger request waits for the
	// runner's record to become observable before returning without an id.
	TriggerWaitMs int `mapstructure:"trigger_wait_ms"`

	// PausePollMs is how often a paused runner re-checks its status.
	PausePollMs int `mapstructure:"pause_poll_ms"`

	// Per-kind schedule intervals in minutes. 0 disables the schedule.
	ScanIntervalMinutes       int `mapstructure:"scan_interval_minutes"`
	InvestmentIntervalMinutes int `mapstructure:"investment_interval_minutes"`
	EndoArbIntervalMinutes    int `mapstructure:"endo_arb_interval_minutes"`
	WatchPollIntervalMinutes  int `mapstructure:"watch_poll_interval_minutes"`

	// CleanupAfterDays controls pruning of old terminal job records.
	CleanupAfterDays int `mapstructure:"cleanup_after_days"`
}

// WatchConfig configures the watchlist poller
type WatchConfig struct {
	// RequestsPerMinute bounds outbound polling of watched markets.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`

	// Burst is the rate limiter burst size.
	Burst int `mapstructure:"burst"`
}

// AuthConfig configures the session provider
type AuthConfig struct {
	SessionExpiryHours int `mapstructure:"session_expiry_hours"`
}
