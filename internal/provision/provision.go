// Package provision creates and removes the external resources a task
// runs in: one git worktree and one tmux session per repository.
//
// Every call is idempotent so a setup interrupted by a crash can simply
// be run again. Failure handling is asymmetric: a checkout that cannot be
// created aborts the setup, while a session that cannot be created is
// logged and skipped.
package provision

import (
	"context"
	"os"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/logging"
	"github.com/Iron-Ham/agman/internal/task"
	"github.com/Iron-Ham/agman/internal/tmux"
	"github.com/Iron-Ham/agman/internal/worktree"
)

// CheckoutFactory opens the checkout manager of the repository at
// repoPath.
type CheckoutFactory func(repoPath string) (worktree.CheckoutManager, error)

// Sessions is the subset of the tmux client the provisioner needs.
type Sessions interface {
	Exists(ctx context.Context, name string) bool
	Create(ctx context.Context, name, dir string, windows []tmux.Window) (bool, error)
	Kill(ctx context.Context, name string) error
}

// Provisioner creates and tears down checkouts and sessions.
type Provisioner struct {
	cfg       *config.Config
	checkouts CheckoutFactory
	sessions  Sessions
	logger    *logging.Logger
}

// New creates a Provisioner backed by git and tmux.
func New(cfg *config.Config, logger *logging.Logger) *Provisioner {
	return NewWithDeps(cfg, func(repoPath string) (worktree.CheckoutManager, error) {
		return worktree.New(repoPath)
	}, tmux.New(cfg.Tmux.Socket), logger)
}

// NewWithDeps creates a Provisioner with custom collaborators.
func NewWithDeps(cfg *config.Config, checkouts CheckoutFactory, sessions Sessions, logger *logging.Logger) *Provisioner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Provisioner{cfg: cfg, checkouts: checkouts, sessions: sessions, logger: logger}
}

// Ensure task.Store can release resources through the provisioner.
var _ task.Releaser = (*Provisioner)(nil)

// EnsureCheckout makes sure a worktree of the repository at repoPath
// exists at worktreePath on branch and returns its path. An existing
// worktree is reused. Failures are fatal ResourceErrors.
func (p *Provisioner) EnsureCheckout(ctx context.Context, repo, repoPath, worktreePath, branch string) (string, error) {
	if info, err := os.Stat(repoPath); err != nil || !info.IsDir() {
		return "", errors.NewResourceError(errors.ResourceCheckout, "repository not found", err).
			WithRepo(repo).WithPath(repoPath)
	}

	mgr, err := p.checkouts(repoPath)
	if err != nil {
		return "", errors.NewResourceError(errors.ResourceCheckout, "cannot open repository", err).
			WithRepo(repo).WithPath(repoPath)
	}

	if mgr.Exists(ctx, worktreePath) {
		p.logger.Debug("checkout already exists", "repo", repo, "path", worktreePath)
		return worktreePath, nil
	}

	if err := mgr.Checkout(ctx, worktreePath, branch); err != nil {
		return "", errors.NewResourceError(errors.ResourceCheckout, "worktree creation failed", err).
			WithRepo(repo).WithPath(worktreePath)
	}
	p.logger.Info("checkout created", "repo", repo, "branch", branch, "path", worktreePath)
	return worktreePath, nil
}

// EnsureSession makes sure the session name exists, rooted at dir with
// the configured window layout. It never fails the caller: a session
// error is logged and reported as false.
func (p *Provisioner) EnsureSession(ctx context.Context, name, dir string) bool {
	created, err := p.sessions.Create(ctx, name, dir, tmux.Layout(p.cfg.Tmux.Windows))
	if err != nil {
		resErr := errors.NewResourceError(errors.ResourceSession, "session creation failed", err).WithSession(name)
		p.logger.Warn("continuing without session", "session", name, "error", resErr)
		return false
	}
	if created {
		p.logger.Info("session created", "session", name, "dir", dir)
	}
	return true
}

// Teardown removes the session, worktree and branch of one repository.
// Every step runs even when an earlier one fails; the failures are
// joined into the returned error.
func (p *Provisioner) Teardown(ctx context.Context, repoPath, branch string, entry task.RepoEntry) error {
	var errs []error

	if entry.TmuxSession != "" {
		if err := p.sessions.Kill(ctx, entry.TmuxSession); err != nil {
			errs = append(errs, errors.NewResourceError(errors.ResourceSession, "session kill failed", err).
				WithRepo(entry.RepoName).WithSession(entry.TmuxSession))
		}
	}

	mgr, err := p.checkouts(repoPath)
	if err != nil {
		errs = append(errs, errors.NewResourceError(errors.ResourceCheckout, "cannot open repository", err).
			WithRepo(entry.RepoName).WithPath(repoPath))
		return errors.Join(errs...)
	}

	if entry.WorktreePath != "" && mgr.Exists(ctx, entry.WorktreePath) {
		if err := mgr.Remove(ctx, entry.WorktreePath); err != nil {
			errs = append(errs, errors.NewResourceError(errors.ResourceCheckout, "worktree removal failed", err).
				WithRepo(entry.RepoName).WithPath(entry.WorktreePath))
		}
	}
	if err := mgr.DeleteBranch(ctx, branch); err != nil {
		errs = append(errs, errors.NewResourceError(errors.ResourceCheckout, "branch deletion failed", err).
			WithRepo(entry.RepoName))
	}

	if len(errs) == 0 {
		p.logger.Info("repository torn down", "repo", entry.RepoName, "branch", branch)
	}
	return errors.Join(errs...)
}

// KillSession removes a session that has no checkout, such as the parent
// session of a multi-repo task.
func (p *Provisioner) KillSession(ctx context.Context, name string) error {
	if err := p.sessions.Kill(ctx, name); err != nil {
		return errors.NewResourceError(errors.ResourceSession, "session kill failed", err).WithSession(name)
	}
	return nil
}
