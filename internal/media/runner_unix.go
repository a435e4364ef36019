//go:build unix

package media

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup places the child in its own process group so a
// terminate signal reaches any sub-children the media tool spawns
// (ffmpeg's filter graph helpers, genisoimage's mkisofs wrapper, etc).
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the process group, giving the tool a
// chance to shut down cleanly before the caller escalates to kill.
func terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = unix.Kill(-cmd.Process.Pid, unix.SIGTERM)
}

// forceKill sends SIGKILL to the process group. Used after the grace
// period following terminate elapses without the process exiting.
func forceKill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}
