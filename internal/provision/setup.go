package provision

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/task"
	"github.com/Iron-Ham/agman/internal/taskfile"
)

// Saver persists a task.
type Saver interface {
	Save(t *task.Task) error
}

// ProvisionRepo ensures the checkout and session of one repository and
// records it on t. It returns the entry and whether t.Repos changed.
func (p *Provisioner) ProvisionRepo(ctx context.Context, t *task.Task, repo string) (task.RepoEntry, bool, error) {
	if err := validateRepoName(repo); err != nil {
		return task.RepoEntry{}, false, err
	}

	entry := task.RepoEntry{
		RepoName:     repo,
		WorktreePath: config.WorktreePath(t.RepoRoot(p.cfg.ReposDir), repo, t.BranchName),
		TmuxSession:  config.SessionName(repo, t.BranchName),
	}
	if existing, ok := t.FindRepo(repo); ok {
		entry = existing
	}

	path, err := p.EnsureCheckout(ctx, repo, t.RepoPath(p.cfg.ReposDir, repo), entry.WorktreePath, t.BranchName)
	if err != nil {
		return task.RepoEntry{}, false, err
	}
	entry.WorktreePath = path
	p.EnsureSession(ctx, entry.TmuxSession, path)

	return entry, t.AddRepo(entry), nil
}

// SetupRepos provisions every repository listed under # Repos in the
// task's TASK.md. The file is re-read on every call because the inspector
// agent writes it. Each newly provisioned repository is appended and
// saved before the next one starts, so an interrupted setup resumes from
// a partial list. Repositories already present are re-ensured but not
// duplicated.
func (p *Provisioner) SetupRepos(ctx context.Context, saver Saver, t *task.Task) error {
	log := p.logger.WithTask(t.ID())

	content, err := t.ReadTaskFile()
	if err != nil {
		return err
	}
	repos := taskfile.ParseRepos(content)
	if len(repos) == 0 {
		return errors.NewParseError("no repositories listed under # Repos", nil).
			WithSource(t.TaskFilePath())
	}

	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, changed, err := p.ProvisionRepo(ctx, t, repo)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		if err := saver.Save(t); err != nil {
			return err
		}
		log.Info("repository added to task", "repo", repo, "repos", len(t.Repos))
	}
	return nil
}

func validateRepoName(repo string) error {
	if repo == "" || repo == "." || repo == ".." || strings.ContainsAny(repo, `/\`) || filepath.IsAbs(repo) {
		return errors.NewValidationError("invalid repository name").WithField("repo").WithValue(repo)
	}
	return nil
}
