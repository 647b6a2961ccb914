package scripting

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writePluginDir(t *testing.T, root, instanceID, pluginName string) {
	t.Helper()
	dir := filepath.Join(root, PluginsDir, instanceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	manifest := "name: " + pluginName + "\nentrypoint: plugin.wasm\n"
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatalf("WriteFile(plugin.yaml) error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plugin.wasm"), []byte("fake"), 0o644); err != nil {
		t.Fatalf("WriteFile(plugin.wasm) error = %v", err)
	}
}

func TestDiscoverAndLoadPlugins_LoadsEachInstanceAndCallsInit(t *testing.T) {
	root := t.TempDir()
	writePluginDir(t, root, "clock-1", "clock")
	writePluginDir(t, root, "clock-2", "clock")

	eval := newFakeEvaluator()
	if err := DiscoverAndLoadPlugins(context.Background(), root, eval); err != nil {
		t.Fatalf("DiscoverAndLoadPlugins() error = %v", err)
	}

	for _, id := range []string{"clock-1", "clock-2"} {
		path, ok := eval.loaded[id]
		if !ok {
			t.Errorf("expected instance %s to be loaded", id)
		}
		if filepath.Base(path) != "plugin.wasm" {
			t.Errorf("loaded path for %s = %s, want plugin.wasm", id, path)
		}
	}

	calls := eval.callsFor(initExport)
	if len(calls) != 2 {
		t.Fatalf("len(init calls) = %d, want 2", len(calls))
	}
}

func TestDiscoverAndLoadPlugins_MissingPluginsDirIsNotAnError(t *testing.T) {
	root := t.TempDir()
	eval := newFakeEvaluator()
	if err := DiscoverAndLoadPlugins(context.Background(), root, eval); err != nil {
		t.Fatalf("DiscoverAndLoadPlugins() error = %v, want nil for an absent plugins directory", err)
	}
}

func TestDiscoverAndLoadPlugins_OneBadInstanceDoesNotBlockTheOthers(t *testing.T) {
	root := t.TempDir()
	writePluginDir(t, root, "good", "clock")
	if err := os.MkdirAll(filepath.Join(root, PluginsDir, "broken"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	} // no plugin.yaml in "broken"

	eval := newFakeEvaluator()
	if err := DiscoverAndLoadPlugins(context.Background(), root, eval); err != nil {
		t.Fatalf("DiscoverAndLoadPlugins() error = %v, want nil (bad instances are only logged)", err)
	}

	if _, ok := eval.loaded["good"]; !ok {
		t.Errorf("expected instance \"good\" to be loaded despite \"broken\" failing")
	}
	if _, ok := eval.loaded["broken"]; ok {
		t.Errorf("instance \"broken\" should not have been loaded")
	}
}
