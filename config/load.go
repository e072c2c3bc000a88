package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/oddsmith/arbiter/errors"
)

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the arbiter configuration using viper. The result is cached;
// call Reset to clear it (tests).
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &config
	return globalConfig, nil
}

// GetViper returns the viper instance for advanced configuration access
func GetViper() *viper.Viper {
	return initViper()
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// Path returns the location of the config file viper is using, or the
// default path when no file has been read yet.
func Path() string {
	v := initViper()
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	return DefaultPath()
}

// DefaultPath returns ~/.config/arbiter/arbiter.toml, falling back to the
// working directory when the home dir is unavailable.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "arbiter.toml"
	}
	return filepath.Join(home, ".config", "arbiter", "arbiter.toml")
}

// initViper initializes viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("ARBITER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName("arbiter")
	v.SetConfigType("toml")
	v.AddConfigPath(filepath.Dir(DefaultPath()))
	v.AddConfigPath(".")

	// Missing config file is fine - defaults and env vars apply.
	_ = v.ReadInConfig()

	viperInstance = v
	return viperInstance
}
