//go:build unix

package download

import (
	"os/exec"
	"syscall"
)

// KillGroupOnCancel starts cmd in its own process group and kills the whole group when its context is cancelled,
// so helpers the tool spawns do not outlive it.
func KillGroupOnCancel(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
