package usecase

import (
	"context"
	"strings"

	"github.com/Iron-Ham/agman/internal/command"
	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/task"
)

// ListCommands returns the stored commands, writing the defaults first if
// they are missing.
func (s *Service) ListCommands() ([]*command.Command, error) {
	if err := config.InitDefaultFiles(s.cfg, false); err != nil {
		return nil, err
	}
	return command.List(s.cfg, s.logger)
}

// PrepareCommand loads the stored command id for a run on t. A command
// that requires a branch gets it written to .rebase-target in the task
// directory, and missing sessions of the task's repositories are
// recreated. Tasks driven by a live flow-run are rejected before anything
// is written.
func (s *Service) PrepareCommand(ctx context.Context, t *task.Task, id, branch string) (*command.Command, error) {
	if err := config.InitDefaultFiles(s.cfg, false); err != nil {
		return nil, err
	}
	c, err := command.Load(s.cfg, id)
	if err != nil {
		return nil, err
	}
	if _, running := task.ActiveRun(t); running {
		return nil, errors.ErrTaskLocked
	}

	branch = strings.TrimSpace(branch)
	if c.RequiresBranch() {
		if branch == "" {
			return nil, errors.NewValidationError("command " + c.ID + " requires a branch").WithField("branch")
		}
		if err := t.WriteRebaseTarget(branch); err != nil {
			return nil, err
		}
	}

	if t.IsMultiRepo() {
		s.prov.EnsureSession(ctx, t.ParentSession(), t.ParentDir)
	}
	for _, entry := range t.Repos {
		s.prov.EnsureSession(ctx, entry.TmuxSession, entry.WorktreePath)
	}

	s.logger.WithTask(t.ID()).Info("command prepared", "command", c.ID, "branch", branch)
	return c, nil
}
