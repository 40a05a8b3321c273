// Package task holds the task data model and its on-disk store.
//
// A task is one unit of orchestrated agent work. Its identity is
// <name>--<sanitized branch>, which is also the name of the directory that
// holds every artifact the task owns: meta.json, TASK.md, notes.md,
// agent.log, FEEDBACK.md and the feedback queue.
//
// Single-repo and multi-repo tasks share one model. A single-repo task is
// the one-element case of Repos; ParentDir being set is the only signal
// that a task spans several repositories.
package task

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusRunning     Status = "running"
	StatusStopped     Status = "stopped"
	StatusInputNeeded Status = "input_needed"
	StatusOnHold      Status = "on_hold"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

// IsTerminal reports whether no further flow steps may run.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusStopped, StatusInputNeeded, StatusOnHold, StatusDone, StatusFailed:
		return true
	}
	return false
}

// String returns the human readable form used in listings.
func (s Status) String() string {
	switch s {
	case StatusInputNeeded:
		return "input needed"
	case StatusOnHold:
		return "on hold"
	default:
		return string(s)
	}
}

// sortRank orders statuses in task listings.
func (s Status) sortRank() int {
	switch s {
	case StatusRunning:
		return 0
	case StatusInputNeeded:
		return 1
	case StatusStopped:
		return 2
	case StatusOnHold:
		return 3
	case StatusFailed:
		return 4
	case StatusDone:
		return 5
	default:
		return 6
	}
}

// RepoEntry is one provisioned repository of a task: its isolated
// checkout and the terminal session attached to it.
type RepoEntry struct {
	RepoName     string `json:"repo_name"`
	WorktreePath string `json:"worktree_path"`
	TmuxSession  string `json:"tmux_session"`
}

// LinkedPR references a pull request opened for the task's branch.
type LinkedPR struct {
	Number uint64 `json:"number"`
	URL    string `json:"url"`
	Owned  bool   `json:"owned"`
	Author string `json:"author,omitempty"`
}

// Task is the persisted record of one unit of orchestrated work.
type Task struct {
	// Name is the repository name for single-repo tasks and the parent
	// directory name for multi-repo tasks.
	Name       string `json:"name"`
	BranchName string `json:"branch_name"`
	Status     Status `json:"status"`
	FlowName   string `json:"flow_name"`
	// CurrentAgent is the agent of the step that last ran, if any.
	CurrentAgent string `json:"current_agent,omitempty"`
	// FlowStep indexes the loop-expanded step sequence of FlowName.
	FlowStep  int       `json:"flow_step"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ReviewAfter     bool      `json:"review_after"`
	LinkedPR        *LinkedPR `json:"linked_pr,omitempty"`
	LastReviewCount *uint64   `json:"last_review_count,omitempty"`
	ReviewAddressed bool      `json:"review_addressed"`

	// Repos may be empty only while a multi-repo task waits for its
	// setup hook.
	Repos []RepoEntry `json:"repos"`
	// ParentDir is set only for multi-repo tasks.
	ParentDir string `json:"parent_dir,omitempty"`

	// Dir is the task directory. It is derived from the ID, never stored.
	Dir string `json:"-"`
}

// ID returns the task identity, <name>--<sanitized branch>.
func (t *Task) ID() string {
	return config.TaskID(t.Name, t.BranchName)
}

// IsMultiRepo reports whether the task spans several repositories.
func (t *Task) IsMultiRepo() bool {
	return t.ParentDir != ""
}

// HasRepos reports whether any repository has been provisioned yet.
func (t *Task) HasRepos() bool {
	return len(t.Repos) > 0
}

// PrimaryRepo returns the first repository entry. It fails with
// ErrNoRepos while the repo list is still empty.
func (t *Task) PrimaryRepo() (RepoEntry, error) {
	if !t.HasRepos() {
		return RepoEntry{}, errors.NewStateError("task has no provisioned repositories", errors.ErrNoRepos).
			WithTaskID(t.ID())
	}
	return t.Repos[0], nil
}

// FindRepo returns the entry for repo, if provisioned.
func (t *Task) FindRepo(repo string) (RepoEntry, bool) {
	i := slices.IndexFunc(t.Repos, func(e RepoEntry) bool { return e.RepoName == repo })
	if i < 0 {
		return RepoEntry{}, false
	}
	return t.Repos[i], true
}

// AddRepo appends entry unless a repository of the same name is already
// present, in which case the existing entry wins. It reports whether the
// list changed.
func (t *Task) AddRepo(entry RepoEntry) bool {
	if _, ok := t.FindRepo(entry.RepoName); ok {
		return false
	}
	t.Repos = append(t.Repos, entry)
	return true
}

// RepoRoot returns the directory containing the task's source
// repositories: the parent directory for multi-repo tasks, reposDir
// otherwise.
func (t *Task) RepoRoot(reposDir string) string {
	if t.IsMultiRepo() {
		return t.ParentDir
	}
	return reposDir
}

// RepoPath returns the main checkout of repo for this task.
func (t *Task) RepoPath(reposDir, repo string) string {
	return filepath.Join(t.RepoRoot(reposDir), repo)
}

// WorkDir returns the directory agents run in: the parent directory for
// multi-repo tasks, the primary checkout otherwise.
func (t *Task) WorkDir() (string, error) {
	if t.IsMultiRepo() {
		return t.ParentDir, nil
	}
	primary, err := t.PrimaryRepo()
	if err != nil {
		return "", err
	}
	return primary.WorktreePath, nil
}

// ParentSession is the session rooted at the parent directory of a
// multi-repo task. It is empty for single-repo tasks.
func (t *Task) ParentSession() string {
	if !t.IsMultiRepo() {
		return ""
	}
	return config.SessionName(t.Name, t.BranchName)
}

// AttachSession returns the session a human attaches to for this task.
func (t *Task) AttachSession() (string, error) {
	if t.IsMultiRepo() {
		return t.ParentSession(), nil
	}
	primary, err := t.PrimaryRepo()
	if err != nil {
		return "", err
	}
	return primary.TmuxSession, nil
}
