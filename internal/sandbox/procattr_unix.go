//go:build !windows

package sandbox

import (
	"os/exec"
	"syscall"
)

// setProcAttr puts the child in its own process group so a timeout kills
// anything it spawned too.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
