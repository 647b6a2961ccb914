package scripting

import (
	"context"
	"os"
	"path/filepath"

	"github.com/neopult/neopult/errors"
	"github.com/neopult/neopult/logger"
)

// PluginsDir is the channel-home subdirectory plugin instances are
// discovered from, mirroring the original's "<channel-home>/plugins/?/init.lua"
// search path entry.
const PluginsDir = "plugins"

// initExport is the guest export every plugin entrypoint module must
// provide. It stands in for the original's single `require("init")` load:
// instead of one big init.lua pulling in whichever plugins it wants, each
// subdirectory under PluginsDir is its own WASM module instance, and its
// init export is expected to call api_register_plugin_instance (and
// whatever api_register_module/api_register_action calls follow) against
// its own instance id.
const initExport = "init"

// DiscoverAndLoadPlugins scans channelHome/plugins for plugin-instance
// directories, loads each one's manifest-declared entrypoint module under
// the directory name as its instance id, and invokes that module's init
// export so it can self-register into registry. A directory that fails to
// load is logged and skipped rather than aborting the whole scan, since one
// broken plugin instance shouldn't prevent the others in the channel from
// coming up.
func DiscoverAndLoadPlugins(ctx context.Context, channelHome string, eval Evaluator) error {
	dir := filepath.Join(channelHome, PluginsDir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to read plugins directory %s", dir)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		instanceID := entry.Name()
		instanceDir := filepath.Join(dir, instanceID)

		if err := loadPluginInstance(ctx, instanceDir, instanceID, eval); err != nil {
			logger.ScriptingWarnw("failed to load plugin instance",
				logger.FieldPluginInstance, instanceID, "error", err)
		}
	}
	return nil
}

func loadPluginInstance(ctx context.Context, instanceDir, instanceID string, eval Evaluator) error {
	manifest, err := LoadManifest(instanceDir)
	if err != nil {
		return err
	}

	entrypoint := filepath.Join(instanceDir, manifest.Entrypoint)
	if err := eval.LoadModule(ctx, instanceID, entrypoint); err != nil {
		return err
	}

	if _, err := eval.InvokeCallback(ctx, CallbackHandle{ModuleInstanceID: instanceID, ExportName: initExport}); err != nil {
		return errors.Wrapf(err, "init export failed for plugin instance %s", instanceID)
	}

	logger.ScriptingInfow("loaded plugin instance",
		logger.FieldPluginInstance, instanceID, "plugin", manifest.Name)
	return nil
}
