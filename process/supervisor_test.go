package process

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	dir := t.TempDir()
	return &Supervisor{
		pidDir:  dir,
		handles: make(map[int]*Handle),
	}
}

func TestSpawn_CapturesOutputLines(t *testing.T) {
	s := newTestSupervisor(t)

	var mu sync.Mutex
	var lines []string
	onOutput := func(line string, stream Stream) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
	}

	h, err := s.Spawn("/bin/sh", SpawnOpts{
		Args:     []string{"-c", "echo hello; echo world 1>&2"},
		OnOutput: onOutput,
		Name:     "echoer",
	})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	h.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 2 {
		t.Fatalf("expected 2 output lines, got %d: %v", len(lines), lines)
	}
}

func TestSpawn_WritesAndRemovesPIDFile(t *testing.T) {
	s := newTestSupervisor(t)

	h, err := s.Spawn("/bin/sh", SpawnOpts{Args: []string{"-c", "exit 0"}})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	pidFilePath := filepath.Join(s.pidDir, strconv.Itoa(h.PID)+".pid")
	if _, err := os.Stat(pidFilePath); err != nil {
		t.Fatalf("expected PID file to exist immediately after spawn: %v", err)
	}

	h.Wait()

	if _, err := os.Stat(pidFilePath); !os.IsNotExist(err) {
		t.Errorf("expected PID file to be removed after exit, stat err = %v", err)
	}
}

func TestHandle_KillIsSingleShot(t *testing.T) {
	s := newTestSupervisor(t)

	h, err := s.Spawn("/bin/sh", SpawnOpts{Args: []string{"-c", "sleep 5"}})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	if err := h.Kill(); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}
	if err := h.Kill(); err != nil {
		t.Fatalf("second Kill() should be a no-op, got error: %v", err)
	}

	select {
	case <-h.doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit after Kill()")
	}
}

func TestHandle_WriteFailsAfterKill(t *testing.T) {
	s := newTestSupervisor(t)

	h, err := s.Spawn("cat", SpawnOpts{})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	h.Kill()
	h.Wait()

	if err := h.Writeln("anything"); err == nil {
		t.Error("expected Write to fail on a killed process")
	}
}

func TestSupervisor_WaitBlocksUntilAllChildrenExit(t *testing.T) {
	s := newTestSupervisor(t)

	h1, err := s.Spawn("/bin/sh", SpawnOpts{Args: []string{"-c", "sleep 0.05"}})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	h2, err := s.Spawn("/bin/sh", SpawnOpts{Args: []string{"-c", "sleep 0.05"}})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Supervisor.Wait() did not return after children exited")
	}

	h1.Wait()
	h2.Wait()
}

func TestSweepStale_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "channel-0")
	s := &Supervisor{pidDir: dir, handles: make(map[int]*Handle)}

	if err := s.SweepStale(); err != nil {
		t.Fatalf("SweepStale() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected pidDir to be created: %v", err)
	}
}

func TestSweepStale_RemovesNonNumericFile(t *testing.T) {
	s := newTestSupervisor(t)
	path := filepath.Join(s.pidDir, "not-a-pid.pid")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("failed to seed PID dir: %v", err)
	}

	if err := s.SweepStale(); err != nil {
		t.Fatalf("SweepStale() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected non-numeric PID file to be removed, stat err = %v", err)
	}
}

func TestSweepStale_RemovesFileForDeadPID(t *testing.T) {
	s := newTestSupervisor(t)

	// A PID extremely unlikely to be alive on the test host.
	const deadPID = 999999
	path := filepath.Join(s.pidDir, strconv.Itoa(deadPID)+".pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(deadPID)), 0o644); err != nil {
		t.Fatalf("failed to seed PID dir: %v", err)
	}

	if err := s.SweepStale(); err != nil {
		t.Fatalf("SweepStale() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected dead PID file to be removed, stat err = %v", err)
	}
}

func TestSweepStale_KillsAliveStaleProcess(t *testing.T) {
	s := newTestSupervisor(t)

	h, err := s.Spawn("/bin/sh", SpawnOpts{Args: []string{"-c", "sleep 10"}})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	// Simulate a previous-run PID file: the process is alive but not tracked
	// in this supervisor's handle map.
	s.mu.Lock()
	delete(s.handles, h.PID)
	s.mu.Unlock()

	if err := s.SweepStale(); err != nil {
		t.Fatalf("SweepStale() error = %v", err)
	}

	select {
	case <-h.doneCh:
	case <-time.After(3 * time.Second):
		t.Fatal("expected stale process to be killed by SweepStale")
	}

	path := filepath.Join(s.pidDir, strconv.Itoa(h.PID)+".pid")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected PID file removed after sweep, stat err = %v", err)
	}
}

func TestWritePIDFile_ContentIsPID(t *testing.T) {
	dir := t.TempDir()
	path, err := writePIDFile(dir, 1234)
	if err != nil {
		t.Fatalf("writePIDFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.TrimSpace(string(data)) != "1234" {
		t.Errorf("PID file content = %q, want 1234", data)
	}
}
