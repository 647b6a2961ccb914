package commands

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"
	"github.com/spf13/cobra"

	"github.com/neopult/neopult/config"
	"github.com/neopult/neopult/errors"
	"github.com/neopult/neopult/internal/httpclient"
	"github.com/neopult/neopult/scripting"
)

// PluginCmd groups plugin-instance management subcommands.
var PluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage plugin instances for a channel",
}

var pluginInstallName string

func init() {
	pluginInstallCmd.Flags().StringVar(&pluginInstallName, "as", "", "instance directory name to install under (defaults to the source's base name)")
	PluginCmd.AddCommand(pluginInstallCmd)
}

var pluginInstallCmd = &cobra.Command{
	Use:   "install <src>",
	Short: "Fetch a plugin bundle into the channel's plugins directory",
	Long: `Install fetches src — a local path, git URL, or any other source
go-getter understands — into a new instance directory under
<channel-home>/plugins, the directory scripting.DiscoverAndLoadPlugins scans
at startup. The fetched bundle must contain a plugin.yaml manifest at its
root.`,
	Args: cobra.ExactArgs(1),
	RunE: runPluginInstall,
}

func runPluginInstall(cmd *cobra.Command, args []string) error {
	src := args[0]

	env, err := config.GetEnvConfig()
	if err != nil {
		return errors.Wrap(err, "failed to resolve channel environment")
	}

	resolved, err := expandAndValidatePath(src)
	if err != nil {
		return errors.Wrapf(err, "invalid plugin source %q", src)
	}

	if u, err := url.Parse(strings.TrimPrefix(resolved, "git::")); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		saferClient := httpclient.NewSaferClient(0)
		if _, err := saferClient.ValidateURL(u.String()); err != nil {
			return errors.Wrapf(err, "plugin source %q rejected", src)
		}
	}

	instanceName := pluginInstallName
	if instanceName == "" {
		instanceName = filepath.Base(strings.TrimSuffix(resolved, "/"))
	}

	dst := filepath.Join(env.ChannelHome, scripting.PluginsDir, instanceName)
	if _, err := os.Stat(dst); err == nil {
		return errors.Newf("plugin instance directory %s already exists", dst)
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	client := &getter.Client{
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeAny,
	}
	if err := client.Get(); err != nil {
		return errors.Wrapf(err, "failed to fetch plugin bundle from %s", src)
	}

	if _, err := scripting.LoadManifest(dst); err != nil {
		os.RemoveAll(dst)
		return errors.Wrapf(err, "fetched bundle at %s has no valid plugin.yaml", dst)
	}

	fmt.Printf("installed plugin instance %q at %s\n", instanceName, dst)
	return nil
}

// expandAndValidatePath normalizes a plugin source the same way the teacher
// normalizes a local module path before fetching it: tilde-expand, then let
// go-getter's detectors distinguish a bare local path from a URL so relative
// paths still resolve correctly once the daemon's working directory changes.
func expandAndValidatePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		path = filepath.Join(home, path[2:])
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		return home, nil
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(path, pwd, getter.Detectors)
	if err != nil {
		return "", errors.Wrap(err, "invalid path")
	}

	u, err := url.Parse(detected)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse path")
	}

	if u.Scheme == "file" {
		return u.Path, nil
	}
	if u.Scheme == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", errors.Wrap(err, "failed to make absolute path")
		}
		return abs, nil
	}

	return path, nil
}
