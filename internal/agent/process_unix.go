//go:build unix

package agent

import (
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const sigtermTimeout = 2 * time.Second

// setProcAttr puts the host in its own process group so a kill reaches
// anything it started.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcess sends SIGTERM to the host's process group and escalates to
// SIGKILL if it has not exited within sigtermTimeout.
func killProcess(p *os.Process, done <-chan struct{}) {
	pid := p.Pid
	if pid <= 0 {
		return
	}
	slog.Debug("agent: sending SIGTERM to host", "pid", pid)
	_ = unix.Kill(-pid, unix.SIGTERM)

	select {
	case <-done:
	case <-time.After(sigtermTimeout):
		slog.Warn("agent: SIGTERM timed out, sending SIGKILL", "pid", pid)
		_ = unix.Kill(-pid, unix.SIGKILL)
	}
}
