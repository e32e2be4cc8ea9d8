//go:build windows

package sandbox

import "os/exec"

// setProcAttr keeps the default Cancel, which kills the direct child only.
func setProcAttr(cmd *exec.Cmd) {}
