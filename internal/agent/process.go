package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// ProcessDialer starts one host process per Dial and talks to it over its
// stdin/stdout. The host's stderr is forwarded to the agent log.
type ProcessDialer struct {
	Path string
	Env  []string // appended to the agent's environment
}

// NewProcessDialer returns a dialer for the host binary at path.
func NewProcessDialer(path string, env ...string) *ProcessDialer {
	return &ProcessDialer{Path: path, Env: env}
}

// Dial starts a fresh host process.
func (d *ProcessDialer) Dial(ctx context.Context) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(d.Path)
	cmd.Env = append(os.Environ(), d.Env...)
	setProcAttr(cmd)

	// os.Pipe rather than cmd.StdoutPipe: Wait must not close our read end
	// before the response frame has been consumed.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("agent: stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, fmt.Errorf("agent: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW)
		return nil, fmt.Errorf("agent: stderr pipe: %w", err)
	}
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW)
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrHostNotFound, d.Path, err)
		}
		return nil, fmt.Errorf("agent: start host: %w", err)
	}
	// The child holds its own copies now.
	stdinR.Close()
	stdoutW.Close()

	pid := cmd.Process.Pid
	slog.Debug("agent: host started", "pid", pid, "cmd", d.Path)

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		forwardStderr(pid, stderr)
	}()

	done := make(chan struct{})
	go func() {
		<-stderrDone
		err := cmd.Wait()
		slog.Debug("agent: host exited", "pid", pid, "err", err)
		close(done)
	}()

	return &pipeChannel{
		w:    stdinW,
		r:    stdoutR,
		done: done,
		terminate: func() {
			killProcess(cmd.Process, done)
		},
	}, nil
}

func forwardStderr(pid int, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			slog.Info("agent: host stderr", "pid", pid, "line", line)
		}
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// isNotFoundError reports whether err means the binary does not exist.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "executable file not found") ||
		strings.Contains(msg, "no such file or directory")
}
