package task

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/logging"
)

// File names inside a task directory.
const (
	MetaFileName         = "meta.json"
	TaskFileName         = "TASK.md"
	NotesFileName        = "notes.md"
	AgentLogFileName     = "agent.log"
	FeedbackFileName     = "FEEDBACK.md"
	QueueFileName        = "feedback_queue.json"
	RebaseTargetFileName = ".rebase-target"
)

// DeleteMode selects how much of a task Delete removes.
type DeleteMode int

const (
	// DeleteTaskOnly removes the task directory and keeps checkouts,
	// branches and sessions.
	DeleteTaskOnly DeleteMode = iota
	// DeleteEverything also tears down every repository's checkout, branch
	// and session, plus the parent session of a multi-repo task.
	DeleteEverything
)

// String returns the flag spelling of the mode.
func (m DeleteMode) String() string {
	if m == DeleteEverything {
		return "everything"
	}
	return "task-only"
}

// Releaser tears down the external resources of a task. It is satisfied
// by the provisioner.
type Releaser interface {
	// Teardown removes the checkout, branch and session of one repository.
	Teardown(ctx context.Context, repoPath, branch string, entry RepoEntry) error
	// KillSession removes a session that is not tied to a checkout.
	KillSession(ctx context.Context, name string) error
}

// Store persists tasks under <base>/tasks, one directory per task.
// Writes of meta.json are atomic so an agent process reading the task
// directory never observes a partial record.
type Store struct {
	cfg    *config.Config
	logger *logging.Logger
	now    func() time.Time
}

// NewStore creates a Store rooted at cfg.TasksDir().
func NewStore(cfg *config.Config, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Store{
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateParams describes a new task.
type CreateParams struct {
	Name        string
	Branch      string
	Flow        string
	Description string
	// Repos is the initial repo list: one entry for single-repo tasks,
	// empty for multi-repo tasks until their setup hook runs.
	Repos []RepoEntry
	// ParentDir marks the task as multi-repo.
	ParentDir   string
	ReviewAfter bool
}

// Create writes a new task directory with meta.json, TASK.md, notes.md
// and agent.log. It fails if a task with the same ID already exists.
func (s *Store) Create(p CreateParams) (*Task, error) {
	if p.Name == "" || p.Branch == "" {
		return nil, errors.NewValidationError("task name and branch are required").
			WithField("name/branch").WithValue(p.Name + "/" + p.Branch)
	}
	if p.Flow == "" {
		return nil, errors.NewValidationError("flow name is required").WithField("flow")
	}

	now := s.now()
	t := &Task{
		Name:        p.Name,
		BranchName:  p.Branch,
		Status:      StatusRunning,
		FlowName:    p.Flow,
		CreatedAt:   now,
		UpdatedAt:   now,
		ReviewAfter: p.ReviewAfter,
		Repos:       append([]RepoEntry{}, p.Repos...),
		ParentDir:   p.ParentDir,
	}
	t.Dir = s.cfg.TaskDir(t.ID())

	if _, err := os.Stat(t.Dir); err == nil {
		return nil, errors.NewAlreadyExistsError("task", t.ID())
	}
	if err := os.MkdirAll(t.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create task directory: %w", err)
	}

	if err := s.write(t); err != nil {
		return nil, err
	}
	if err := t.initFiles(p.Description); err != nil {
		return nil, err
	}

	s.logger.Info("task created",
		"task_id", t.ID(),
		"flow", t.FlowName,
		"repos", len(t.Repos),
		"multi_repo", t.IsMultiRepo(),
	)
	return t, nil
}

// Load reads the task with the given ID. A missing directory yields a
// NotFoundError wrapping ErrTaskNotFound; an unreadable or undecodable
// record yields a StateError.
func (s *Store) Load(id string) (*Task, error) {
	dir := s.cfg.TaskDir(id)
	path := filepath.Join(dir, MetaFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("task", id).WithCause(errors.ErrTaskNotFound)
		}
		return nil, errors.NewStateError("failed to read task record", err).WithTaskID(id).WithPath(path)
	}

	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.NewStateError("failed to decode task record",
			errors.Join(errors.ErrTaskCorrupted, err)).WithTaskID(id).WithPath(path)
	}
	if !t.Status.Valid() || t.Name == "" || t.BranchName == "" || t.FlowStep < 0 {
		return nil, errors.NewStateError("task record is incompatible", errors.ErrTaskCorrupted).
			WithTaskID(id).WithPath(path)
	}
	if t.Repos == nil {
		t.Repos = []RepoEntry{}
	}
	t.Dir = dir
	return &t, nil
}

// Resolve loads a task by full ID or, when ref has no separator, by a
// branch name that matches exactly one task.
func (s *Store) Resolve(ref string) (*Task, error) {
	if _, _, ok := config.ParseTaskID(ref); ok {
		return s.Load(ref)
	}

	tasks, err := s.List()
	if err != nil {
		return nil, err
	}
	var matches []*Task
	for _, t := range tasks {
		if t.BranchName == ref || config.SanitizeBranch(t.BranchName) == ref {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return nil, errors.NewNotFoundError("task", ref).WithCause(errors.ErrTaskNotFound)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID()
		}
		return nil, fmt.Errorf("%w: %q matches %s; use <name>--<branch>",
			errors.ErrTaskAmbiguous, ref, strings.Join(ids, ", "))
	}
}

// Save stamps UpdatedAt and atomically rewrites meta.json.
func (s *Store) Save(t *Task) error {
	t.UpdatedAt = s.now()
	return s.write(t)
}

func (s *Store) write(t *Task) error {
	if t.Dir == "" {
		t.Dir = s.cfg.TaskDir(t.ID())
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := atomicWriteFile(filepath.Join(t.Dir, MetaFileName), data, 0644); err != nil {
		return errors.NewStateError("failed to write task record", err).WithTaskID(t.ID())
	}
	return nil
}

// List returns every readable task, ordered running, input needed,
// stopped, on hold, failed, done, and within a status by most recent
// update first. Unreadable records are logged and skipped.
func (s *Store) List() ([]*Task, error) {
	entries, err := os.ReadDir(s.cfg.TasksDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tasks directory: %w", err)
	}

	var tasks []*Task
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		if _, _, ok := config.ParseTaskID(id); !ok {
			continue
		}
		t, err := s.Load(id)
		if err != nil {
			s.logger.Warn("skipping unreadable task", "task_id", id, "error", err)
			continue
		}
		tasks = append(tasks, t)
	}

	slices.SortStableFunc(tasks, func(a, b *Task) int {
		if ra, rb := a.Status.sortRank(), b.Status.sortRank(); ra != rb {
			return ra - rb
		}
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return tasks, nil
}

// Delete removes a task. With DeleteEverything every repository is torn
// down through rel first; teardown is best-effort and one failing
// repository does not stop the others. The task directory is removed in
// both modes.
func (s *Store) Delete(ctx context.Context, t *Task, mode DeleteMode, rel Releaser) error {
	log := s.logger.WithTask(t.ID())

	if mode == DeleteEverything {
		if rel == nil {
			return errors.NewValidationError("deleting everything requires a resource releaser")
		}
		for _, entry := range t.Repos {
			repoPath := t.RepoPath(s.cfg.ReposDir, entry.RepoName)
			if err := rel.Teardown(ctx, repoPath, t.BranchName, entry); err != nil {
				log.Warn("repository teardown incomplete", "repo", entry.RepoName, "error", err)
			}
		}
		if parent := t.ParentSession(); parent != "" {
			if err := rel.KillSession(ctx, parent); err != nil {
				log.Warn("failed to kill parent session", "session", parent, "error", err)
			}
		}
	}

	dir := t.Dir
	if dir == "" {
		dir = s.cfg.TaskDir(t.ID())
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove task directory: %w", err)
	}

	log.Info("task deleted", "mode", mode.String(), "repos", len(t.Repos))
	return nil
}

// atomicWriteFile writes data to a temp file in the destination directory
// and renames it into place, so readers see either the old or the new
// content and never a partial write.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	// Same directory keeps the rename on one filesystem
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
