package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/agman/internal/errors"
)

// Manager handles git worktree operations for one repository.
type Manager struct {
	repoDir  string
	executor CommandExecutor
}

// FindGitRoot finds the root of the git repository by traversing up from startDir.
// It returns the directory containing .git (either a directory or a file for worktrees).
func FindGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			// .git is a file inside linked worktrees
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.ErrNotGitRepository
		}
		dir = parent
	}
}

// New creates a Manager for the repository containing repoDir.
func New(repoDir string) (*Manager, error) {
	return NewWithExecutor(repoDir, NewCLICommandExecutor())
}

// NewWithExecutor creates a Manager with a custom executor.
func NewWithExecutor(repoDir string, executor CommandExecutor) (*Manager, error) {
	gitRoot, err := FindGitRoot(repoDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrNotGitRepository, repoDir)
	}
	return &Manager{repoDir: gitRoot, executor: executor}, nil
}

func (m *Manager) git(ctx context.Context, args ...string) (string, error) {
	out, err := m.executor.Run(ctx, m.repoDir, "git", args...)
	return string(out), err
}

// BranchExists reports whether a local branch exists.
func (m *Manager) BranchExists(ctx context.Context, branch string) bool {
	_, err := m.git(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// Create adds a worktree at path on a new branch created from HEAD.
func (m *Manager) Create(ctx context.Context, path, branch string) error {
	if output, err := m.git(ctx, "worktree", "add", "-b", branch, path); err != nil {
		return fmt.Errorf("failed to create worktree: %w\n%s", err, truncateOutput(output, maxErrorOutput))
	}
	return nil
}

// CreateFromExisting adds a worktree at path for a branch that already
// exists.
func (m *Manager) CreateFromExisting(ctx context.Context, path, branch string) error {
	if output, err := m.git(ctx, "worktree", "add", path, branch); err != nil {
		return fmt.Errorf("failed to create worktree from branch %s: %w\n%s", branch, err, truncateOutput(output, maxErrorOutput))
	}
	return nil
}

// Checkout creates a worktree for branch at path, reusing the branch when
// it already exists. The parent directory is created first.
func (m *Manager) Checkout(ctx context.Context, path, branch string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create worktree parent: %w", err)
	}
	if m.BranchExists(ctx, branch) {
		return m.CreateFromExisting(ctx, path, branch)
	}
	return m.Create(ctx, path, branch)
}

// List returns all worktree paths, the main checkout included.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	output, err := m.git(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	var worktrees []string
	for _, line := range strings.Split(output, "\n") {
		if path, ok := strings.CutPrefix(line, "worktree "); ok {
			worktrees = append(worktrees, path)
		}
	}
	return worktrees, nil
}

// Exists reports whether path is a registered worktree that is present on
// disk.
func (m *Manager) Exists(ctx context.Context, path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	worktrees, err := m.List(ctx)
	if err != nil {
		return false
	}
	want := canonical(path)
	for _, wt := range worktrees {
		if canonical(wt) == want {
			return true
		}
	}
	return false
}

// Remove removes a worktree. When git refuses, the directory is deleted
// and stale worktree metadata is pruned before the error is returned.
func (m *Manager) Remove(ctx context.Context, path string) error {
	output, err := m.git(ctx, "worktree", "remove", "--force", path)
	if err == nil {
		return nil
	}

	_ = os.RemoveAll(path)
	_ = m.Prune(ctx)
	return fmt.Errorf("failed to remove worktree cleanly: %w\n%s", err, truncateOutput(output, maxErrorOutput))
}

// Prune drops metadata of worktrees whose directories are gone.
func (m *Manager) Prune(ctx context.Context) error {
	if output, err := m.git(ctx, "worktree", "prune"); err != nil {
		return fmt.Errorf("failed to prune worktrees: %w\n%s", err, truncateOutput(output, maxErrorOutput))
	}
	return nil
}

// DeleteBranch force-deletes a local branch.
func (m *Manager) DeleteBranch(ctx context.Context, branch string) error {
	if output, err := m.git(ctx, "branch", "-D", branch); err != nil {
		return fmt.Errorf("failed to delete branch: %w\n%s", err, truncateOutput(output, maxErrorOutput))
	}
	return nil
}

// canonical resolves symlinks so /var and /private/var compare equal.
func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
