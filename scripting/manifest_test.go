package scripting

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

func TestLoadManifest_ValidAPIVersion(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "name: clock\napi_version: \">=1.0.0, <2.0.0\"\nentrypoint: clock.wasm\n")

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if m.Name != "clock" || m.Entrypoint != "clock.wasm" {
		t.Errorf("LoadManifest() = %+v", m)
	}
}

func TestLoadManifest_IncompatibleAPIVersion(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "name: clock\napi_version: \">=99.0.0\"\nentrypoint: clock.wasm\n")

	if _, err := LoadManifest(dir); err == nil {
		t.Error("expected error for an unsatisfiable api_version constraint")
	}
}

func TestLoadManifest_MissingName(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "entrypoint: clock.wasm\n")

	if _, err := LoadManifest(dir); err == nil {
		t.Error("expected error for a manifest missing name")
	}
}

func TestLoadManifest_NoConstraintAlwaysAccepted(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "name: clock\nentrypoint: clock.wasm\n")

	if _, err := LoadManifest(dir); err != nil {
		t.Errorf("LoadManifest() with no api_version should succeed, got %v", err)
	}
}
