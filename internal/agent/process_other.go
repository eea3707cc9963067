//go:build !unix

package agent

import (
	"os"
	"os/exec"
)

func setProcAttr(cmd *exec.Cmd) {}

func killProcess(p *os.Process, done <-chan struct{}) {
	_ = p.Kill()
}
