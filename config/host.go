package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/neopult/neopult/errors"
)

// HostConfig is the optional overlay read from <channel-home>/config.toml
// (or the file named by NEOPULT_CONFIG_FILE), layered under
// environment variables prefixed NEOPULT_. It carries operator-tunable
// knobs that spec.md's plugin scripts never see.
type HostConfig struct {
	LogJSON            bool     `mapstructure:"log_json"`
	LogTheme           string   `mapstructure:"log_theme"`
	ListenAddr         string   `mapstructure:"listen_addr"`
	PluginSearchPaths  []string `mapstructure:"plugin_search_paths"`
	AuditDBPath        string   `mapstructure:"audit_db_path"`
	HeartbeatSeconds   int      `mapstructure:"heartbeat_seconds"`
	ClientTimeoutSecs  int      `mapstructure:"client_timeout_seconds"`
	RateLimitPerSecond float64  `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int      `mapstructure:"rate_limit_burst"`
	// WebSocketPassword gates the client server's single auth frame. The
	// "admin" default matches plugin_system/config.rs's LuaConfig default —
	// every channel is expected to override it once deployed.
	WebSocketPassword string `mapstructure:"websocket_password"`
}

const envPrefix = "NEOPULT"

var hostDefaults = map[string]interface{}{
	"log_json":              false,
	"log_theme":             "everforest",
	"listen_addr":           "0.0.0.0",
	"plugin_search_paths":   []string{},
	"audit_db_path":         "audit.db",
	"heartbeat_seconds":     5,
	"client_timeout_seconds": 10,
	"rate_limit_per_second": 20.0,
	"rate_limit_burst":      40,
	"websocket_password":    "admin",
}

// LoadHostConfig reads the host overlay for the given channel home. It never
// fails when the file is absent — only defaults plus environment variables
// are used in that case, matching viper's own "config optional" posture.
func LoadHostConfig(channelHome string) (*HostConfig, *viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range hostDefaults {
		v.SetDefault(key, value)
	}

	path := configFilePath(channelHome)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to read host config %s", path)
		}
	}

	var cfg HostConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, errors.Wrap(err, "failed to unmarshal host config")
	}

	return &cfg, v, nil
}

// configFilePath resolves the host config path: NEOPULT_CONFIG_FILE wins if
// set, otherwise it's <channelHome>/config.toml.
func configFilePath(channelHome string) string {
	if override := os.Getenv("NEOPULT_CONFIG_FILE"); override != "" {
		return override
	}
	return filepath.Join(channelHome, "config.toml")
}
