//go:build !windows

package proc

import (
	"errors"
	"os/exec"
	"syscall"
)

// check probes a pid with signal 0. ESRCH proves the process is gone;
// EPERM proves it exists but belongs to someone else. Anything else is
// ambiguous and reported as Unknown.
func check(pid int) Liveness {
	err := syscall.Kill(pid, 0)
	switch {
	case err == nil:
		return Alive
	case errors.Is(err, syscall.ESRCH):
		return Dead
	case errors.Is(err, syscall.EPERM):
		return Alive
	default:
		return Unknown
	}
}

// kill sends SIGTERM. A missing process is a failed request.
func kill(pid int) bool {
	return syscall.Kill(pid, syscall.SIGTERM) == nil
}

// setDetachAttrs puts the child in its own session so it survives the
// parent terminal closing.
func setDetachAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
