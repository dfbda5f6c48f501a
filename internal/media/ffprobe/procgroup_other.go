//go:build !unix

package ffprobe

import (
	"os/exec"
	"time"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = 250 * time.Millisecond
}
