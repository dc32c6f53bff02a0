//go:build unix

package whisper

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the child in its own process group so a kill
// also reaches anything it forked (ffmpeg, torch workers).
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
