package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadHostConfig_Defaults(t *testing.T) {
	channelHome := t.TempDir()

	cfg, _, err := LoadHostConfig(channelHome)
	if err != nil {
		t.Fatalf("LoadHostConfig() error = %v", err)
	}
	if cfg.LogTheme != "everforest" {
		t.Errorf("LogTheme = %q, want everforest", cfg.LogTheme)
	}
	if cfg.HeartbeatSeconds != 5 {
		t.Errorf("HeartbeatSeconds = %d, want 5", cfg.HeartbeatSeconds)
	}
	if cfg.RateLimitPerSecond != 20.0 {
		t.Errorf("RateLimitPerSecond = %v, want 20.0", cfg.RateLimitPerSecond)
	}
	if cfg.WebSocketPassword != "admin" {
		t.Errorf("WebSocketPassword = %q, want admin", cfg.WebSocketPassword)
	}
}

func TestLoadHostConfig_FileOverlay(t *testing.T) {
	channelHome := t.TempDir()
	toml := `
log_json = true
log_theme = "gruvbox"
heartbeat_seconds = 15
`
	if err := os.WriteFile(filepath.Join(channelHome, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, _, err := LoadHostConfig(channelHome)
	if err != nil {
		t.Fatalf("LoadHostConfig() error = %v", err)
	}
	if !cfg.LogJSON {
		t.Error("LogJSON = false, want true")
	}
	if cfg.LogTheme != "gruvbox" {
		t.Errorf("LogTheme = %q, want gruvbox", cfg.LogTheme)
	}
	if cfg.HeartbeatSeconds != 15 {
		t.Errorf("HeartbeatSeconds = %d, want 15", cfg.HeartbeatSeconds)
	}
	// Defaults not present in the file should still apply.
	if cfg.RateLimitBurst != 40 {
		t.Errorf("RateLimitBurst = %d, want 40", cfg.RateLimitBurst)
	}
}

func TestLoadHostConfig_EnvOverridesFile(t *testing.T) {
	channelHome := t.TempDir()
	toml := `heartbeat_seconds = 15`
	if err := os.WriteFile(filepath.Join(channelHome, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	os.Setenv("NEOPULT_HEARTBEAT_SECONDS", "30")
	defer os.Unsetenv("NEOPULT_HEARTBEAT_SECONDS")

	cfg, _, err := LoadHostConfig(channelHome)
	if err != nil {
		t.Fatalf("LoadHostConfig() error = %v", err)
	}
	if cfg.HeartbeatSeconds != 30 {
		t.Errorf("HeartbeatSeconds = %d, want 30 (env should win over file)", cfg.HeartbeatSeconds)
	}
}

func TestLoadHostConfig_ExplicitFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte(`log_theme = "nord"`), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	os.Setenv("NEOPULT_CONFIG_FILE", path)
	defer os.Unsetenv("NEOPULT_CONFIG_FILE")

	cfg, _, err := LoadHostConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadHostConfig() error = %v", err)
	}
	if cfg.LogTheme != "nord" {
		t.Errorf("LogTheme = %q, want nord", cfg.LogTheme)
	}
}
