package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetEnvConfig_Defaults(t *testing.T) {
	home := t.TempDir()
	os.Setenv("NEOPULT_HOME", home)
	os.Unsetenv("NEOPULT_CHANNEL")
	defer os.Unsetenv("NEOPULT_HOME")

	channelHome := filepath.Join(home, "channel-0")
	if err := os.Mkdir(channelHome, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, err := GetEnvConfig()
	if err != nil {
		t.Fatalf("GetEnvConfig() error = %v", err)
	}
	if cfg.Channel != ChannelDefault {
		t.Errorf("Channel = %d, want %d", cfg.Channel, ChannelDefault)
	}
	if cfg.NeopultHome != home {
		t.Errorf("NeopultHome = %q, want %q", cfg.NeopultHome, home)
	}
	if cfg.ChannelHome != channelHome {
		t.Errorf("ChannelHome = %q, want %q", cfg.ChannelHome, channelHome)
	}
}

func TestGetEnvConfig_ExplicitChannel(t *testing.T) {
	home := t.TempDir()
	os.Setenv("NEOPULT_HOME", home)
	os.Setenv("NEOPULT_CHANNEL", "7")
	defer os.Unsetenv("NEOPULT_HOME")
	defer os.Unsetenv("NEOPULT_CHANNEL")

	channelHome := filepath.Join(home, "channel-7")
	if err := os.Mkdir(channelHome, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, err := GetEnvConfig()
	if err != nil {
		t.Fatalf("GetEnvConfig() error = %v", err)
	}
	if cfg.Channel != 7 {
		t.Errorf("Channel = %d, want 7", cfg.Channel)
	}
}

func TestGetEnvConfig_ChannelOutOfRange(t *testing.T) {
	home := t.TempDir()
	os.Setenv("NEOPULT_HOME", home)
	os.Setenv("NEOPULT_CHANNEL", "100")
	defer os.Unsetenv("NEOPULT_HOME")
	defer os.Unsetenv("NEOPULT_CHANNEL")

	if err := os.Mkdir(filepath.Join(home, "channel-0"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, err := GetEnvConfig()
	if err != nil {
		t.Fatalf("GetEnvConfig() error = %v, want fallback to channel %d for channel 100", err, ChannelDefault)
	}
	if cfg.Channel != ChannelDefault {
		t.Errorf("Channel = %d, want %d for out-of-range channel 100", cfg.Channel, ChannelDefault)
	}
}

func TestGetEnvConfig_NonNumericChannel(t *testing.T) {
	home := t.TempDir()
	os.Setenv("NEOPULT_HOME", home)
	os.Setenv("NEOPULT_CHANNEL", "abc")
	defer os.Unsetenv("NEOPULT_HOME")
	defer os.Unsetenv("NEOPULT_CHANNEL")

	if err := os.Mkdir(filepath.Join(home, "channel-0"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, err := GetEnvConfig()
	if err != nil {
		t.Fatalf("GetEnvConfig() error = %v, want fallback to channel %d for non-numeric channel", err, ChannelDefault)
	}
	if cfg.Channel != ChannelDefault {
		t.Errorf("Channel = %d, want %d for non-numeric channel", cfg.Channel, ChannelDefault)
	}
}

func TestGetEnvConfig_MissingChannelHome(t *testing.T) {
	home := t.TempDir()
	os.Setenv("NEOPULT_HOME", home)
	os.Unsetenv("NEOPULT_CHANNEL")
	defer os.Unsetenv("NEOPULT_HOME")

	if _, err := GetEnvConfig(); err == nil {
		t.Error("expected error when channel home does not exist, got nil")
	}
}

func TestGetEnvConfig_MissingNeopultHome(t *testing.T) {
	os.Setenv("NEOPULT_HOME", filepath.Join(t.TempDir(), "does-not-exist"))
	os.Unsetenv("NEOPULT_CHANNEL")
	defer os.Unsetenv("NEOPULT_HOME")

	if _, err := GetEnvConfig(); err == nil {
		t.Error("expected error when neopult home does not exist, got nil")
	}
}
