package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/logging"
)

// LockFileName is the name of the flow-run lock inside a task directory.
const LockFileName = ".flow.lock"

// RunLock marks a task as driven by one flow-run process. It enforces at
// most one agent process per task and lets stop find the process to
// signal.
type RunLock struct {
	TaskID    string    `json:"task_id"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	lockFile string
	logger   *logging.Logger
}

// AcquireRunLock takes the flow-run lock of t. A lock held by a live
// process fails with ErrTaskLocked; a lock left by a dead process is
// taken over.
func AcquireRunLock(t *Task, logger *logging.Logger) (*RunLock, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	lockPath := filepath.Join(t.Dir, LockFileName)

	if existing, err := ReadRunLock(lockPath); err == nil {
		if IsProcessAlive(existing.PID) {
			return nil, fmt.Errorf("%w: PID %d on %s", errors.ErrTaskLocked, existing.PID, existing.Hostname)
		}
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
		logger.Warn("stale flow-run lock cleaned", "task_id", t.ID(), "old_pid", existing.PID)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	lock := &RunLock{
		TaskID:    t.ID(),
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now().UTC(),
		lockFile:  lockPath,
		logger:    logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	// O_EXCL loses the race cleanly if another flow-run got here first
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.ErrTaskLocked
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	logger.Debug("flow-run lock acquired", "task_id", lock.TaskID, "pid", lock.PID)
	return lock, nil
}

// Release removes the lock if this process still owns it. Safe to call
// more than once.
func (l *RunLock) Release() error {
	if l == nil || l.lockFile == "" {
		return nil
	}
	existing, err := ReadRunLock(l.lockFile)
	if err != nil || existing.PID != l.PID {
		return nil
	}
	if err := os.Remove(l.lockFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	l.logger.Debug("flow-run lock released", "task_id", l.TaskID)
	return nil
}

// ReadRunLock reads a lock file.
func ReadRunLock(lockPath string) (*RunLock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var lock RunLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.lockFile = lockPath
	return &lock, nil
}

// ActiveRun returns the lock of a live flow-run on t, if any.
func ActiveRun(t *Task) (*RunLock, bool) {
	lock, err := ReadRunLock(filepath.Join(t.Dir, LockFileName))
	if err != nil || !IsProcessAlive(lock.PID) {
		return nil, false
	}
	return lock, true
}

// Terminate asks the flow-run holding the lock to stop with SIGTERM and
// waits up to grace for it to exit. A process that ignores the signal is
// killed together with its children.
func (l *RunLock) Terminate(grace time.Duration) error {
	if err := syscall.Kill(l.PID, syscall.SIGTERM); err != nil {
		if err == syscall.ESRCH {
			return nil
		}
		return fmt.Errorf("failed to signal flow-run %d: %w", l.PID, err)
	}
	if !WaitForProcessExit(l.PID, grace) {
		KillProcessTree(l.PID)
	}
	return nil
}
