package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/neopult/neopult/internal/httpclient"
)

func TestExpandAndValidatePath_ResolvesRelativeLocalPath(t *testing.T) {
	got, err := expandAndValidatePath("testdata")
	if err != nil {
		t.Fatalf("expandAndValidatePath() error = %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("expandAndValidatePath(%q) = %q, want an absolute path", "testdata", got)
	}
}

func TestExpandAndValidatePath_ExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory available: %v", err)
	}

	got, err := expandAndValidatePath("~/plugins/clock")
	if err != nil {
		t.Fatalf("expandAndValidatePath() error = %v", err)
	}
	want := filepath.Join(home, "plugins/clock")
	if got != want {
		t.Errorf("expandAndValidatePath(~/plugins/clock) = %q, want %q", got, want)
	}
}

func TestExpandAndValidatePath_PassesThroughGitURL(t *testing.T) {
	src := "git::https://example.com/org/plugin.git"
	got, err := expandAndValidatePath(src)
	if err != nil {
		t.Fatalf("expandAndValidatePath() error = %v", err)
	}
	if got == "" {
		t.Error("expandAndValidatePath() returned an empty path for a git source")
	}
}

func TestSaferClient_RejectsLoopbackPluginSource(t *testing.T) {
	client := httpclient.NewSaferClient(0)
	if _, err := client.ValidateURL("http://127.0.0.1:8080/plugin.tar.gz"); err == nil {
		t.Error("ValidateURL() accepted a loopback plugin source, want rejection")
	}
}
