//go:build unix

package ffprobe

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const killGrace = 250 * time.Millisecond

// configureProcessGroup starts the command in a new process group and kills
// the whole group on context cancellation.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = killGrace
}
