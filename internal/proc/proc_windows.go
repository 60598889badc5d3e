//go:build windows

package proc

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

const detachedProcess = 0x00000008

// check opens a limited-information handle via os.FindProcess and a zero
// signal. FindProcess on Windows fails only when the pid doesn't exist;
// a Signal error against a finished process also proves death. Any other
// failure is ambiguous.
func check(pid int) Liveness {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return Dead
	}
	err = proc.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		return Alive
	case errors.Is(err, os.ErrProcessDone):
		return Dead
	default:
		return Unknown
	}
}

// kill force-terminates the process tree via taskkill.
func kill(pid int) bool {
	cmd := exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F")
	return cmd.Run() == nil
}

// setDetachAttrs detaches the child from the parent console.
func setDetachAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}
