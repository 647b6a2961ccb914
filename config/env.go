// Package config resolves the per-channel environment a daemon instance runs
// under and layers an optional host-wide TOML file on top of it.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/neopult/neopult/errors"
	"github.com/neopult/neopult/logger"
)

const (
	// ChannelDefault is the channel used when NEOPULT_CHANNEL is unset.
	ChannelDefault = 0
	// ChannelMax is the highest channel number a single host supports.
	// Channel numbers map 1:1 onto ws listen ports (4200+channel), so this
	// also bounds the port range a host will ever bind.
	ChannelMax = 99

	envKeyChannel = "NEOPULT_CHANNEL"
	envKeyHome    = "NEOPULT_HOME"
)

// EnvConfig is the identity of a single daemon instance: which channel it
// serves and where that channel keeps its on-disk state.
type EnvConfig struct {
	Channel     int
	NeopultHome string
	ChannelHome string
}

// GetEnvConfig reads NEOPULT_CHANNEL and NEOPULT_HOME and resolves the
// channel's home directory, neopult_home/channel-<n>. It requires the
// channel home to already exist — neopult never creates it, since it holds
// user-managed plugin instance state. A NEOPULT_CHANNEL that is not a number
// or lies outside [0, ChannelMax] is logged as a warning and ChannelDefault
// is used instead.
func GetEnvConfig() (*EnvConfig, error) {
	channel := ChannelDefault
	if raw := os.Getenv(envKeyChannel); raw != "" {
		parsed, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			logger.Warnw("channel is not a number, falling back to the default channel",
				"env", envKeyChannel, "value", raw, logger.FieldChannel, ChannelDefault)
		case parsed < 0 || parsed > ChannelMax:
			logger.Warnw("channel is out of range, falling back to the default channel",
				"env", envKeyChannel, "value", parsed, "max", ChannelMax, logger.FieldChannel, ChannelDefault)
		default:
			channel = parsed
		}
	}

	neopultHome := os.Getenv(envKeyHome)
	if neopultHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrapf(err, "%s is unset and the user home directory could not be determined", envKeyHome)
		}
		neopultHome = home
	}
	if info, err := os.Stat(neopultHome); err != nil || !info.IsDir() {
		return nil, errors.Newf("neopult home %q does not exist or is not a directory", neopultHome)
	}

	channelHome := filepath.Join(neopultHome, "channel-"+strconv.Itoa(channel))
	if info, err := os.Stat(channelHome); err != nil || !info.IsDir() {
		return nil, errors.WithHintf(
			errors.Newf("channel home %q does not exist", channelHome),
			"create the directory before starting the daemon for channel %d", channel,
		)
	}

	return &EnvConfig{
		Channel:     channel,
		NeopultHome: neopultHome,
		ChannelHome: channelHome,
	}, nil
}
