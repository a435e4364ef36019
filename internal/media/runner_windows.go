//go:build windows

package media

import "os/exec"

// setProcessGroup is a no-op on Windows; job-object based grouping is
// not needed for the single-child media tool processes this runner
// launches.
func setProcessGroup(cmd *exec.Cmd) {}

// terminate on Windows has no graceful-signal equivalent usable here,
// so it goes straight to Kill; forceKill is then a no-op duplicate.
func terminate(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func forceKill(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
