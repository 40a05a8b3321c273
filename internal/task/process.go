package task

import (
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// IsProcessAlive checks if a process with the given PID exists.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// Signal 0 probes for existence without affecting the process
	return syscall.Kill(pid, 0) == nil
}

// descendantPIDs returns all descendants of pid, parents before children.
func descendantPIDs(pid int) []int {
	output, err := exec.Command("pgrep", "-P", strconv.Itoa(pid)).Output()
	if err != nil {
		return nil
	}

	var descendants []int
	for _, line := range strings.Fields(string(output)) {
		child, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		descendants = append(descendants, child)
		descendants = append(descendants, descendantPIDs(child)...)
	}
	return descendants
}

// KillProcessTree sends SIGKILL to a process and all its descendants,
// deepest first so no child is orphaned before it is killed.
func KillProcessTree(pid int) {
	if pid <= 0 {
		return
	}
	descendants := descendantPIDs(pid)
	for i := len(descendants) - 1; i >= 0; i-- {
		if IsProcessAlive(descendants[i]) {
			_ = syscall.Kill(descendants[i], syscall.SIGKILL)
		}
	}
	if IsProcessAlive(pid) {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}

// WaitForProcessExit polls until pid exits or timeout elapses. It reports
// whether the process is gone.
func WaitForProcessExit(pid int, timeout time.Duration) bool {
	if !IsProcessAlive(pid) {
		return true
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return !IsProcessAlive(pid)
		case <-ticker.C:
			if !IsProcessAlive(pid) {
				return true
			}
		}
	}
}
