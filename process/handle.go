// Package process supervises child processes spawned by plugin scripts: it
// pipes their stdio, tails stdout/stderr line by line, tracks a PID file per
// child for crash recovery, and sweeps stale PID files left behind by a
// previous run of the daemon.
package process

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/neopult/neopult/errors"
	"github.com/neopult/neopult/logger"
)

// Stream identifies which pipe a line of output came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// OnOutput is invoked once per whole line of output. It is called from the
// supervisor's reader goroutine, not the scripting thread; callers that need
// to touch script state must marshal back onto the event queue.
type OnOutput func(line string, stream Stream)

// Usage is a point-in-time resource sample for a running child.
type Usage struct {
	CPUPercent float64
	RSSBytes   uint64
}

// Handle is a supervised child process. All methods are safe for concurrent
// use; Write/Writeln/Kill are typically called synchronously from a script
// callback.
type Handle struct {
	Cmd  string
	Args []string
	PID  int

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pidFile string

	mu     sync.Mutex
	killed bool
	killCh chan struct{}
	doneCh chan struct{}
}

// Write pushes raw bytes to the child's stdin.
func (h *Handle) Write(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.killed {
		return errors.Newf("process %d (%s) is no longer running", h.PID, h.Cmd)
	}
	if _, err := h.stdin.Write(data); err != nil {
		return errors.Wrapf(err, "failed to write to stdin of process %d", h.PID)
	}
	return nil
}

// Writeln writes line followed by a newline.
func (h *Handle) Writeln(line string) error {
	return h.Write([]byte(line + "\n"))
}

// Kill requests termination. It is single-shot: subsequent calls log and
// are no-ops. It does not block for the child to actually exit — use Wait
// or the Supervisor's aggregate Wait for that.
func (h *Handle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.killed {
		logger.ProcessWarnw("kill() called on already-killed process", "pid", h.PID, "cmd", h.Cmd)
		return nil
	}
	h.killed = true
	close(h.killCh)
	return nil
}

// Wait blocks until the child's lifecycle task has finished (the child
// exited and its PID file was removed).
func (h *Handle) Wait() {
	<-h.doneCh
}

// Usage samples the child's current CPU and RSS usage. This is an
// operator-only diagnostic; script callbacks have no access to it.
func (h *Handle) Usage() (Usage, error) {
	proc, err := process.NewProcess(int32(h.PID))
	if err != nil {
		return Usage{}, errors.Wrapf(err, "failed to inspect process %d", h.PID)
	}
	cpuPct, err := proc.CPUPercent()
	if err != nil {
		return Usage{}, errors.Wrapf(err, "failed to read CPU usage for process %d", h.PID)
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return Usage{}, errors.Wrapf(err, "failed to read memory usage for process %d", h.PID)
	}
	return Usage{CPUPercent: cpuPct, RSSBytes: mem.RSS}, nil
}

func tailLines(r io.Reader, stream Stream, processName string, onOutput OnOutput) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		logger.ProcessInfow("child output", "process", processName, "stream", string(stream), "line", line)
		if onOutput != nil {
			onOutput(line, stream)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.ProcessWarnw("child output reader error", "process", processName, "stream", string(stream), "error", err)
	}
}

func writePIDFile(pidDir string, pid int) (string, error) {
	if err := os.MkdirAll(pidDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create PID directory %s", pidDir)
	}
	path := filepath.Join(pidDir, strconv.Itoa(pid)+".pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write PID file %s", path)
	}
	return path, nil
}
