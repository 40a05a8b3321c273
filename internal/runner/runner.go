// Package runner drives a task through its flow.
//
// One Run call holds the task's flow-run lock and executes steps back to
// back: build the prompt, invoke the agent, classify the result, run the
// step's post hook when it was satisfied and persist the transition. It
// returns when the task pauses, completes, fails or is stopped. Only one
// agent process runs per task at any time. A loop body that starts more
// than flow.max_loop_iterations times in one run puts the task on hold.
package runner

import (
	"context"
	"fmt"
	"io"

	"github.com/Iron-Ham/agman/internal/agent"
	"github.com/Iron-Ham/agman/internal/command"
	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/flow"
	"github.com/Iron-Ham/agman/internal/logging"
	"github.com/Iron-Ham/agman/internal/prompt"
	"github.com/Iron-Ham/agman/internal/provision"
	"github.com/Iron-Ham/agman/internal/task"
)

// Invoker runs one agent process.
type Invoker interface {
	Run(ctx context.Context, req agent.Request) (agent.Result, error)
}

// PromptBuilder assembles the prompt of an agent for a task.
type PromptBuilder interface {
	Build(ctx context.Context, t *task.Task, agent string) (string, error)
}

// Hooks implements the post hooks a flow step can name.
type Hooks interface {
	SetupRepos(ctx context.Context, saver provision.Saver, t *task.Task) error
}

// Store loads and persists tasks.
type Store interface {
	Load(id string) (*task.Task, error)
	Save(t *task.Task) error
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Store   Store
	Invoker Invoker
	Prompts PromptBuilder
	Hooks   Hooks
	// Out receives progress lines; nil discards them.
	Out io.Writer
}

// Runner executes flows.
type Runner struct {
	cfg    *config.Config
	deps   Deps
	logger *logging.Logger
}

// New creates a Runner wired to the real agent process, prompt assembler
// and provisioner. Agent output and progress go to out.
func New(cfg *config.Config, store *task.Store, out io.Writer, logger *logging.Logger) *Runner {
	return NewWithDeps(cfg, Deps{
		Store:   store,
		Invoker: agent.New(cfg, out, logger),
		Prompts: prompt.New(cfg, logger),
		Hooks:   provision.New(cfg, logger),
		Out:     out,
	}, logger)
}

// NewWithDeps creates a Runner with custom collaborators.
func NewWithDeps(cfg *config.Config, deps Deps, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger}
}

// Report summarizes one Run.
type Report struct {
	// Status is the task status when Run returned.
	Status task.Status
	// Steps is the number of agent runs performed.
	Steps int
	// Last is the classification of the final agent run.
	Last flow.Outcome
}

// Run drives t from its current flow_step until the flow leaves the
// running state. t is updated in place and saved after every transition.
//
// Terminal tasks are rejected with ErrTaskTerminal and a task already
// driven by another flow-run with ErrTaskLocked. A flow that fails to
// load leaves the task untouched. Failures that happen while a step runs
// mark the task failed, persist it and are returned.
func (r *Runner) Run(ctx context.Context, t *task.Task) (Report, error) {
	report := Report{Status: t.Status}
	if t.Status.IsTerminal() {
		return report, fmt.Errorf("%w: %s is %s", errors.ErrTaskTerminal, t.ID(), t.Status)
	}

	lock, err := task.AcquireRunLock(t, r.logger)
	if err != nil {
		return report, err
	}
	defer lock.Release()

	f, err := flow.Load(r.cfg, t.FlowName)
	if err != nil {
		return report, err
	}
	if !f.ValidIndex(t.FlowStep) {
		return report, errors.NewValidationError("flow step out of range").
			WithField("flow_step").WithValue(t.FlowStep)
	}
	return r.drive(ctx, t, f)
}

// RunCommand runs a stored command's flow from its first step under the
// task's flow-run lock. The task's flow_name and flow_step are swapped for
// the command while it runs and restored afterwards, whatever the outcome,
// so the task's own flow resumes where it was. Commands also run on done
// and failed tasks.
//
// A command that completes leaves the task in the status it had before,
// except that running becomes stopped because no flow-run drives the
// task's flow any more. A command that pauses, fails or is stopped leaves
// the task in that status.
func (r *Runner) RunCommand(ctx context.Context, t *task.Task, c *command.Command) (Report, error) {
	report := Report{Status: t.Status}

	lock, err := task.AcquireRunLock(t, r.logger)
	if err != nil {
		return report, err
	}
	defer lock.Release()

	prevFlow, prevStep, prevStatus := t.FlowName, t.FlowStep, t.Status
	t.FlowName, t.FlowStep = c.ID, 0
	r.logger.WithTask(t.ID()).Info("command started", "command", c.ID, "flow", prevFlow, "step", prevStep)

	report, runErr := r.drive(ctx, t, c.Flow)

	t.FlowName, t.FlowStep = prevFlow, prevStep
	if t.Status == task.StatusDone {
		t.Status = prevStatus
		if t.Status == task.StatusRunning {
			t.Status = task.StatusStopped
		}
	}
	report.Status = t.Status
	if err := r.deps.Store.Save(t); err != nil {
		return report, errors.Join(runErr, err)
	}
	return report, runErr
}

// drive executes f on t from t.FlowStep. The caller holds the flow-run
// lock.
func (r *Runner) drive(ctx context.Context, t *task.Task, f *flow.Flow) (Report, error) {
	report := Report{Status: t.Status}
	log := r.logger.WithTask(t.ID()).With("flow", f.Name)
	log.Info("flow-run started", "step", t.FlowStep)

	t.Status = task.StatusRunning
	if err := r.deps.Store.Save(t); err != nil {
		return report, err
	}

	// Loop bodies started again in this run, by loop start index
	repeats := make(map[int]int)

	for {
		if ctx.Err() != nil {
			r.finish(t, task.StatusStopped)
			report.Status = t.Status
			return report, r.deps.Store.Save(t)
		}

		step, _ := f.Step(t.FlowStep)
		outcome, err := r.runStep(ctx, f, t, step)
		report.Steps++
		report.Last = outcome
		if err != nil {
			log.Error("step failed", "step", step.Index, "agent", step.Agent, "error", err)
			if ctx.Err() != nil {
				r.finish(t, task.StatusStopped)
			} else {
				r.finish(t, task.StatusFailed)
			}
			report.Status = t.Status
			if saveErr := r.deps.Store.Save(t); saveErr != nil {
				return report, errors.Join(err, saveErr)
			}
			return report, err
		}

		log.Info("step classified",
			"step", step.Index,
			"agent", step.Agent,
			"transition", outcome.Transition.String(),
			"next", outcome.Next,
		)

		if outcome.Transition == flow.LoopRepeat {
			repeats[outcome.Next]++
			if repeats[outcome.Next] >= r.cfg.Flow.MaxLoopIterations {
				outcome = flow.Outcome{
					Transition: flow.PauseHold,
					Next:       outcome.Next,
					Satisfied:  outcome.Satisfied,
					Err:        errors.NewAgentError(step.Agent, errors.ErrLoopLimit),
				}
				report.Last = outcome
				log.Warn("loop iteration limit reached",
					"loop_start", outcome.Next,
					"max_loop_iterations", r.cfg.Flow.MaxLoopIterations,
				)
			}
		}

		switch outcome.Transition {
		case flow.Advance, flow.LoopRepeat:
			t.FlowStep = outcome.Next
			// A hold issued while the agent ran takes effect between steps
			if status, ok := r.externalStatus(t); ok {
				t.Status = status
				report.Status = status
				log.Info("flow-run interrupted", "status", string(status), "step", t.FlowStep)
				return report, r.deps.Store.Save(t)
			}
			if err := r.deps.Store.Save(t); err != nil {
				return report, err
			}
			continue
		case flow.Complete:
			t.FlowStep = outcome.Next
			t.Status = task.StatusDone
			r.printf("Task complete\n")
		case flow.PauseInput:
			t.Status = task.StatusInputNeeded
			r.printf("Agent %s needs input; answer in %s and resume\n", step.Agent, t.TaskFilePath())
		case flow.PauseHold:
			t.FlowStep = outcome.Next
			t.Status = task.StatusOnHold
			if outcome.Err != nil {
				r.printf("Task on hold after %s: %v\n", step.Agent, outcome.Err)
			} else {
				r.printf("Task on hold after %s\n", step.Agent)
			}
		case flow.Fail:
			t.Status = task.StatusFailed
			r.printf("Task failed: %v\n", outcome.Err)
		case flow.Stop:
			r.finish(t, task.StatusStopped)
			r.printf("Task stopped\n")
		}

		report.Status = t.Status
		if err := r.deps.Store.Save(t); err != nil {
			return report, err
		}
		log.Info("flow-run finished", "status", string(t.Status), "steps", report.Steps)
		return report, nil
	}
}

// runStep runs the agent of step and classifies the result. The post hook
// runs here, after classification and before the caller moves flow_step,
// so it sees the task as the step left it. An error means the task must
// fail with flow_step unchanged.
func (r *Runner) runStep(ctx context.Context, f *flow.Flow, t *task.Task, step flow.Step) (flow.Outcome, error) {
	r.printf("Step %d: running agent %s (until: %s)\n", step.Index, step.Agent, step.Until)

	t.CurrentAgent = step.Agent
	if err := r.deps.Store.Save(t); err != nil {
		return flow.Outcome{}, err
	}

	text, err := r.deps.Prompts.Build(ctx, t, step.Agent)
	if err != nil {
		return flow.Outcome{}, err
	}
	workDir, err := t.WorkDir()
	if err != nil {
		return flow.Outcome{}, err
	}

	res, err := r.deps.Invoker.Run(ctx, agent.Request{
		Agent:   step.Agent,
		Prompt:  text,
		WorkDir: workDir,
		Task:    t,
	})
	if err != nil {
		return flow.Outcome{}, err
	}

	// The refiner folds FEEDBACK.md into TASK.md
	if step.Agent == r.cfg.Agent.Refiner && !res.Cancelled {
		if err := t.ClearFeedback(); err != nil {
			return flow.Outcome{}, err
		}
	}

	outcome := f.Classify(step.Index, res.RunResult())
	if outcome.Satisfied {
		if err := r.runHook(ctx, t, step.PostHook); err != nil {
			return outcome, fmt.Errorf("post hook %s: %w", step.PostHook, err)
		}
	}
	return outcome, nil
}

func (r *Runner) runHook(ctx context.Context, t *task.Task, hook flow.HookKind) error {
	switch hook {
	case flow.HookNone:
		return nil
	case flow.HookSetupRepos:
		r.printf("Setting up repositories from %s\n", t.TaskFilePath())
		return r.deps.Hooks.SetupRepos(ctx, r.deps.Store, t)
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnknownHook, hook)
	}
}

// externalStatus returns the persisted status of t when another command
// moved it out of running.
func (r *Runner) externalStatus(t *task.Task) (task.Status, bool) {
	fresh, err := r.deps.Store.Load(t.ID())
	if err != nil || fresh.Status == task.StatusRunning {
		return "", false
	}
	return fresh.Status, true
}

// finish moves t to a status in which no agent is running.
func (r *Runner) finish(t *task.Task, status task.Status) {
	t.Status = status
	if status == task.StatusStopped {
		t.CurrentAgent = ""
	}
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.deps.Out, format, args...)
}
