// Package proc provides cross-platform process spawning, liveness probing,
// and termination for background reminder workers.
package proc

import (
	"fmt"
	"os"
	"os/exec"
)

// Liveness is the three-valued result of a process liveness probe.
// Unknown means the probe itself failed in a way that doesn't prove the
// process is gone; callers must never treat Unknown as dead.
type Liveness int

const (
	Alive Liveness = iota
	Dead
	Unknown
)

// SentinelPID marks test-scaffolding registry entries. It is never a real
// process and is pruned unconditionally on load.
const SentinelPID = 99999999

func (l Liveness) String() string {
	switch l {
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// MaybeAlive collapses a Liveness to a conservative boolean: only a
// confirmed Dead counts as not alive.
func (l Liveness) MaybeAlive() bool {
	return l != Dead
}

// Check probes whether the given pid is running.
func Check(pid int) Liveness {
	if pid <= 0 {
		return Dead
	}
	return check(pid)
}

// Kill requests best-effort termination of the given pid. The return value
// reflects whether the termination request succeeded, not whether the
// process has exited yet.
func Kill(pid int) bool {
	if pid <= 0 {
		return false
	}
	return kill(pid)
}

// SpawnDetached starts this executable with the given arguments as a fully
// detached process: stdio on the null device, its own session/process group,
// untouched by the parent's exit. Returns the child pid.
func SpawnDetached(args ...string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}

	cmd := exec.Command(exe, args...)
	// Nil stdio means os/exec wires the null device.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setDetachAttrs(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn worker: %w", err)
	}

	pid := cmd.Process.Pid
	// Release so the parent never waits on the child.
	_ = cmd.Process.Release()
	return pid, nil
}
