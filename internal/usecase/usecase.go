// Package usecase implements the task operations exposed by the CLI:
// creating and deleting tasks, moving them between statuses, and managing
// feedback and notes. Running a flow is the runner's job; the operations
// here only prepare the task record so the next flow-run picks up from the
// right place.
package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/discovery"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/flow"
	"github.com/Iron-Ham/agman/internal/logging"
	"github.com/Iron-Ham/agman/internal/provision"
	"github.com/Iron-Ham/agman/internal/task"
	"github.com/Iron-Ham/agman/internal/tmux"
)

// DefaultStopGrace is how long a stopped flow-run may take to exit before
// its process tree is killed.
const DefaultStopGrace = 5 * time.Second

// KeySender sends keystrokes to a tmux target.
type KeySender interface {
	SendKeys(ctx context.Context, target, keys string) error
}

// Service performs task operations against one configuration.
type Service struct {
	cfg    *config.Config
	store  *task.Store
	prov   *provision.Provisioner
	keys   KeySender
	logger *logging.Logger
	now    func() time.Time

	// StopGrace overrides DefaultStopGrace.
	StopGrace time.Duration
}

// New creates a Service backed by git and tmux.
func New(cfg *config.Config, store *task.Store, logger *logging.Logger) *Service {
	return NewWithDeps(cfg, store, provision.New(cfg, logger), tmux.New(cfg.Tmux.Socket), logger)
}

// NewWithDeps creates a Service with custom collaborators.
func NewWithDeps(cfg *config.Config, store *task.Store, prov *provision.Provisioner, keys KeySender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		prov:      prov,
		keys:      keys,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		StopGrace: DefaultStopGrace,
	}
}

// Store returns the task store the service operates on.
func (s *Service) Store() *task.Store { return s.store }

// CreateTaskParams describes a single-repo task.
type CreateTaskParams struct {
	Repo        string
	Branch      string
	Description string
	// Flow defaults to the configured default flow.
	Flow        string
	ReviewAfter bool
}

// CreateTask provisions the checkout and session of one repository and
// creates the task record. Default flows and prompts are written first
// if missing. The flow is loaded up front so a broken definition fails
// before anything is provisioned.
func (s *Service) CreateTask(ctx context.Context, p CreateTaskParams) (*task.Task, error) {
	if p.Flow == "" {
		p.Flow = s.cfg.Flow.Default
	}
	if err := s.prepare(p.Repo, p.Branch, p.Flow); err != nil {
		return nil, err
	}

	draft := &task.Task{Name: p.Repo, BranchName: p.Branch, Repos: []task.RepoEntry{}}
	if _, _, err := s.prov.ProvisionRepo(ctx, draft, p.Repo); err != nil {
		return nil, err
	}

	return s.store.Create(task.CreateParams{
		Name:        p.Repo,
		Branch:      p.Branch,
		Flow:        p.Flow,
		Description: p.Description,
		Repos:       draft.Repos,
		ReviewAfter: p.ReviewAfter,
	})
}

// CreateMultiRepoTaskParams describes a task spanning the repositories
// under one parent directory.
type CreateMultiRepoTaskParams struct {
	ParentDir   string
	Branch      string
	Description string
	// Flow defaults to the configured multi-repo flow.
	Flow string
}

// CreateMultiRepoTask creates a task named after its parent directory
// with an empty repository list. The repositories are provisioned later
// by the flow's setup hook, once the inspector agent has listed them.
// Only the parent session is created here.
func (s *Service) CreateMultiRepoTask(ctx context.Context, p CreateMultiRepoTaskParams) (*task.Task, error) {
	if p.Flow == "" {
		p.Flow = s.cfg.Flow.Multi
	}
	parent, err := filepath.Abs(p.ParentDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", p.ParentDir, err)
	}
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return nil, errors.NewValidationError("parent directory does not exist").WithField("parent_dir").WithValue(parent)
	}

	name := filepath.Base(parent)
	if err := s.prepare(name, p.Branch, p.Flow); err != nil {
		return nil, err
	}

	repos, err := discovery.ListRepos(ctx, parent)
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		return nil, errors.NewValidationError("no git repositories found under parent directory").
			WithField("parent_dir").WithValue(parent)
	}

	t, err := s.store.Create(task.CreateParams{
		Name:        name,
		Branch:      p.Branch,
		Flow:        p.Flow,
		Description: p.Description,
		ParentDir:   parent,
	})
	if err != nil {
		return nil, err
	}
	s.prov.EnsureSession(ctx, t.ParentSession(), parent)
	s.logger.WithTask(t.ID()).Info("multi-repo task awaiting repository setup", "candidates", len(repos))
	return t, nil
}

// prepare writes missing default files and checks that the task does not
// exist yet and that its flow loads.
func (s *Service) prepare(name, branch, flowName string) error {
	if name == "" || branch == "" {
		return errors.NewValidationError("task name and branch are required").WithField("name/branch")
	}
	if err := config.InitDefaultFiles(s.cfg, false); err != nil {
		return err
	}
	id := config.TaskID(name, branch)
	if _, err := os.Stat(s.cfg.TaskDir(id)); err == nil {
		return errors.NewAlreadyExistsError("task", id)
	}
	_, err := flow.Load(s.cfg, flowName)
	return err
}

// DeleteTask removes a task. A flow-run still driving it is stopped first.
func (s *Service) DeleteTask(ctx context.Context, t *task.Task, mode task.DeleteMode) error {
	if lock, ok := task.ActiveRun(t); ok {
		if err := lock.Terminate(s.StopGrace); err != nil {
			return err
		}
	}
	return s.store.Delete(ctx, t, mode, s.prov)
}

// ListTasks returns every readable task in listing order.
func (s *Service) ListTasks() ([]*task.Task, error) {
	return s.store.List()
}

// SaveNotes replaces the task's notes.
func (s *Service) SaveNotes(t *task.Task, notes string) error {
	return t.WriteNotes(notes)
}

// DispatchFlowRun types a flow-run command for t into the dispatch window
// of its attach session, so the run is visible to anyone attached.
func (s *Service) DispatchFlowRun(ctx context.Context, t *task.Task) error {
	session, err := t.AttachSession()
	if err != nil {
		return err
	}
	exe, err := os.Executable()
	if err != nil {
		exe = "agman"
	}
	cmd := fmt.Sprintf("%q --base-dir %q flow-run %q", exe, s.cfg.BaseDir, t.ID())
	target := tmux.WindowTarget(session, s.cfg.Tmux.DispatchWindow)
	if err := s.keys.SendKeys(ctx, target, cmd); err != nil {
		return errors.NewResourceError(errors.ResourceSession, "failed to dispatch flow-run", err).WithSession(session)
	}
	s.logger.WithTask(t.ID()).Info("flow-run dispatched", "target", target)
	return nil
}
