package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/Iron-Ham/agman/internal/agent"
	"github.com/Iron-Ham/agman/internal/command"
	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/flow"
	"github.com/Iron-Ham/agman/internal/provision"
	"github.com/Iron-Ham/agman/internal/task"
)

const loopFlow = `name: new
steps:
  - agent: planner
    until: AGENT_DONE
  - loop:
      - agent: coder
        until: AGENT_DONE
      - agent: checker
        until: AGENT_DONE
    until: TASK_COMPLETE
`

const multiFlow = `name: new-multi
steps:
  - agent: repo-inspector
    until: AGENT_DONE
    post_hook: setup_repos
  - agent: coder
    until: AGENT_DONE
`

const refineFlow = `name: continue
steps:
  - agent: refiner
    until: AGENT_DONE
  - agent: coder
    until: AGENT_DONE
`

// scriptedInvoker returns one result per call, in order.
type scriptedInvoker struct {
	results []agent.Result
	errs    map[int]error
	calls   []agent.Request
	// onRun runs before each result is returned
	onRun func(call int, req agent.Request)
}

func (s *scriptedInvoker) Run(ctx context.Context, req agent.Request) (agent.Result, error) {
	call := len(s.calls)
	s.calls = append(s.calls, req)
	if s.onRun != nil {
		s.onRun(call, req)
	}
	if err := s.errs[call]; err != nil {
		return agent.Result{ExitCode: -1}, err
	}
	if call >= len(s.results) {
		return agent.Result{}, fmt.Errorf("unexpected agent call %d (%s)", call, req.Agent)
	}
	return s.results[call], nil
}

func (s *scriptedInvoker) agents() []string {
	names := make([]string, len(s.calls))
	for i, c := range s.calls {
		names[i] = c.Agent
	}
	return names
}

type stubPrompts struct{}

func (stubPrompts) Build(ctx context.Context, t *task.Task, agent string) (string, error) {
	return "prompt for " + agent, nil
}

// recordingHooks records the state the task was in when a hook ran.
type recordingHooks struct {
	calls     int
	flowSteps []int
	repos     []string
	err       error
}

func (h *recordingHooks) SetupRepos(ctx context.Context, saver provision.Saver, t *task.Task) error {
	h.calls++
	h.flowSteps = append(h.flowSteps, t.FlowStep)
	if h.err != nil {
		return h.err
	}
	for _, repo := range h.repos {
		if t.AddRepo(task.RepoEntry{RepoName: repo, WorktreePath: t.ParentDir + "/" + repo + "-wt/feat"}) {
			if err := saver.Save(t); err != nil {
				return err
			}
		}
	}
	return nil
}

func sentinel(s flow.Sentinel) agent.Result {
	return agent.Result{Sentinel: s}
}

type fixture struct {
	cfg     *config.Config
	store   *task.Store
	invoker *scriptedInvoker
	hooks   *recordingHooks
	out     *bytes.Buffer
	runner  *Runner
}

func newFixture(t *testing.T, flows map[string]string, results ...agent.Result) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDir = t.TempDir()
	cfg.ReposDir = t.TempDir()
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	for name, content := range flows {
		if err := os.WriteFile(cfg.FlowPath(name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	f := &fixture{
		cfg:     cfg,
		store:   task.NewStore(cfg, nil),
		invoker: &scriptedInvoker{results: results, errs: map[int]error{}},
		hooks:   &recordingHooks{},
		out:     &bytes.Buffer{},
	}
	f.runner = NewWithDeps(cfg, Deps{
		Store:   f.store,
		Invoker: f.invoker,
		Prompts: stubPrompts{},
		Hooks:   f.hooks,
		Out:     f.out,
	}, nil)
	return f
}

func (f *fixture) singleRepoTask(t *testing.T, flowName string) *task.Task {
	t.Helper()
	tk, err := f.store.Create(task.CreateParams{
		Name:        "app",
		Branch:      "feat",
		Flow:        flowName,
		Description: "Add login",
		Repos: []task.RepoEntry{{
			RepoName:     "app",
			WorktreePath: config.WorktreePath(f.cfg.ReposDir, "app", "feat"),
			TmuxSession:  config.SessionName("app", "feat"),
		}},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return tk
}

func (f *fixture) reload(t *testing.T, tk *task.Task) *task.Task {
	t.Helper()
	loaded, err := f.store.Load(tk.ID())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return loaded
}

func TestRun_LoopUntilComplete(t *testing.T) {
	f := newFixture(t, map[string]string{"new": loopFlow},
		sentinel(flow.SentinelAgentDone),    // planner
		sentinel(flow.SentinelAgentDone),    // coder
		sentinel(flow.SentinelAgentDone),    // checker, loop not done
		sentinel(flow.SentinelAgentDone),    // coder
		sentinel(flow.SentinelTaskComplete), // checker
	)
	tk := f.singleRepoTask(t, "new")

	report, err := f.runner.Run(context.Background(), tk)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"planner", "coder", "checker", "coder", "checker"}
	if got := f.invoker.agents(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("agents = %v, want %v", got, want)
	}
	if report.Status != task.StatusDone || report.Steps != 5 {
		t.Errorf("Report = %+v, want done after 5 steps", report)
	}

	saved := f.reload(t, tk)
	if saved.Status != task.StatusDone {
		t.Errorf("Status = %s, want done", saved.Status)
	}
	if saved.FlowStep != 2 {
		t.Errorf("FlowStep = %d, want 2", saved.FlowStep)
	}
	if saved.CurrentAgent != "checker" {
		t.Errorf("CurrentAgent = %q, want checker", saved.CurrentAgent)
	}
	if _, ok := task.ActiveRun(saved); ok {
		t.Error("flow-run lock should be released")
	}
}

func TestRun_WorkDirAndPrompt(t *testing.T) {
	f := newFixture(t, map[string]string{"new": loopFlow}, sentinel(flow.SentinelInputNeeded))
	tk := f.singleRepoTask(t, "new")

	if _, err := f.runner.Run(context.Background(), tk); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	req := f.invoker.calls[0]
	if req.WorkDir != tk.Repos[0].WorktreePath {
		t.Errorf("WorkDir = %q, want the primary checkout %q", req.WorkDir, tk.Repos[0].WorktreePath)
	}
	if req.Prompt != "prompt for planner" {
		t.Errorf("Prompt = %q", req.Prompt)
	}
}

func TestRun_Pauses(t *testing.T) {
	tests := []struct {
		name       string
		result     agent.Result
		wantStatus task.Status
	}{
		{"input needed", sentinel(flow.SentinelInputNeeded), task.StatusInputNeeded},
		{"blocked", sentinel(flow.SentinelTaskBlocked), task.StatusOnHold},
		{"no sentinel", sentinel(flow.SentinelNone), task.StatusFailed},
		{"unexpected sentinel", sentinel(flow.SentinelTestsPass), task.StatusFailed},
		{"abnormal exit", agent.Result{ExitCode: 2, Sentinel: flow.SentinelAgentDone}, task.StatusFailed},
		{"complete at first step", sentinel(flow.SentinelTaskComplete), task.StatusDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{"new": loopFlow}, tt.result)
			tk := f.singleRepoTask(t, "new")

			report, err := f.runner.Run(context.Background(), tk)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if report.Steps != 1 {
				t.Errorf("Steps = %d, want 1", report.Steps)
			}
			saved := f.reload(t, tk)
			if saved.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", saved.Status, tt.wantStatus)
			}
			if saved.FlowStep != 0 {
				t.Errorf("FlowStep = %d, want 0", saved.FlowStep)
			}
		})
	}
}

func TestRun_FailureCarriesAgentError(t *testing.T) {
	f := newFixture(t, map[string]string{"new": loopFlow}, sentinel(flow.SentinelNone))
	tk := f.singleRepoTask(t, "new")

	report, err := f.runner.Run(context.Background(), tk)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	var agentErr *errors.AgentError
	if !errors.As(report.Last.Err, &agentErr) || agentErr.Agent != "planner" {
		t.Errorf("Last.Err = %v, want an AgentError for planner", report.Last.Err)
	}
	if !errors.Is(report.Last.Err, errors.ErrNoSentinel) {
		t.Errorf("Last.Err = %v, want ErrNoSentinel", report.Last.Err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t, map[string]string{"new": loopFlow}, agent.Result{Cancelled: true, ExitCode: -1})
	tk := f.singleRepoTask(t, "new")

	report, err := f.runner.Run(context.Background(), tk)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	saved := f.reload(t, tk)
	if report.Status != task.StatusStopped || saved.Status != task.StatusStopped {
		t.Errorf("Status = %s/%s, want stopped", report.Status, saved.Status)
	}
	if saved.CurrentAgent != "" {
		t.Errorf("CurrentAgent = %q, want cleared", saved.CurrentAgent)
	}
}

func TestRun_ContextCancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t, map[string]string{"new": loopFlow}, sentinel(flow.SentinelAgentDone))
	f.invoker.onRun = func(int, agent.Request) { cancel() }
	tk := f.singleRepoTask(t, "new")

	if _, err := f.runner.Run(ctx, tk); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	saved := f.reload(t, tk)
	if saved.Status != task.StatusStopped {
		t.Errorf("Status = %s, want stopped", saved.Status)
	}
	if saved.FlowStep != 1 {
		t.Errorf("FlowStep = %d, want the completed planner step recorded", saved.FlowStep)
	}
	if len(f.invoker.calls) != 1 {
		t.Errorf("calls = %d, want no agent after cancellation", len(f.invoker.calls))
	}
}

func TestRun_InvokerError(t *testing.T) {
	f := newFixture(t, map[string]string{"new": loopFlow})
	f.invoker.errs[0] = errors.NewAgentError("planner", fmt.Errorf("executable not found"))
	tk := f.singleRepoTask(t, "new")

	if _, err := f.runner.Run(context.Background(), tk); err == nil {
		t.Fatal("Run() should return the start failure")
	}
	if saved := f.reload(t, tk); saved.Status != task.StatusFailed {
		t.Errorf("Status = %s, want failed", saved.Status)
	}
}

func TestRun_Rejections(t *testing.T) {
	t.Run("terminal", func(t *testing.T) {
		f := newFixture(t, map[string]string{"new": loopFlow})
		tk := f.singleRepoTask(t, "new")
		tk.Status = task.StatusDone

		if _, err := f.runner.Run(context.Background(), tk); !errors.Is(err, errors.ErrTaskTerminal) {
			t.Errorf("Run() error = %v, want ErrTaskTerminal", err)
		}
		if len(f.invoker.calls) != 0 {
			t.Error("no agent may run for a terminal task")
		}
	})

	t.Run("locked", func(t *testing.T) {
		f := newFixture(t, map[string]string{"new": loopFlow})
		tk := f.singleRepoTask(t, "new")
		lock, err := task.AcquireRunLock(tk, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer lock.Release()

		if _, err := f.runner.Run(context.Background(), tk); !errors.Is(err, errors.ErrTaskLocked) {
			t.Errorf("Run() error = %v, want ErrTaskLocked", err)
		}
	})

	t.Run("missing flow", func(t *testing.T) {
		f := newFixture(t, nil)
		tk := f.singleRepoTask(t, "new")

		if _, err := f.runner.Run(context.Background(), tk); !errors.Is(err, errors.ErrFlowNotFound) {
			t.Errorf("Run() error = %v, want ErrFlowNotFound", err)
		}
		if saved := f.reload(t, tk); saved.Status != task.StatusRunning {
			t.Errorf("Status = %s, want the task untouched", saved.Status)
		}
	})

	t.Run("step out of range", func(t *testing.T) {
		f := newFixture(t, map[string]string{"new": loopFlow})
		tk := f.singleRepoTask(t, "new")
		tk.FlowStep = 7

		if _, err := f.runner.Run(context.Background(), tk); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Run() error = %v, want a validation error", err)
		}
	})
}

func TestRun_PostHookRunsBeforeAdvance(t *testing.T) {
	f := newFixture(t, map[string]string{"new-multi": multiFlow},
		sentinel(flow.SentinelAgentDone), // repo-inspector
		sentinel(flow.SentinelAgentDone), // coder
	)
	f.hooks.repos = []string{"svcA", "svcB"}
	parent := t.TempDir()
	tk, err := f.store.Create(task.CreateParams{
		Name: "repos", Branch: "feat", Flow: "new-multi", ParentDir: parent,
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := f.runner.Run(context.Background(), tk)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Status != task.StatusDone {
		t.Errorf("Status = %s, want done", report.Status)
	}
	if f.hooks.calls != 1 {
		t.Fatalf("hook calls = %d, want 1", f.hooks.calls)
	}
	if f.hooks.flowSteps[0] != 0 {
		t.Errorf("hook saw flow_step %d, want 0", f.hooks.flowSteps[0])
	}
	for _, req := range f.invoker.calls {
		if req.WorkDir != parent {
			t.Errorf("%s ran in %q, want the parent directory", req.Agent, req.WorkDir)
		}
	}

	saved := f.reload(t, tk)
	if len(saved.Repos) != 2 || saved.Repos[0].RepoName != "svcA" || saved.Repos[1].RepoName != "svcB" {
		t.Errorf("Repos = %+v, want svcA and svcB", saved.Repos)
	}
}

func TestRun_PostHookSkippedWhenNotSatisfied(t *testing.T) {
	f := newFixture(t, map[string]string{"new-multi": multiFlow}, sentinel(flow.SentinelInputNeeded))
	tk, err := f.store.Create(task.CreateParams{
		Name: "repos", Branch: "feat", Flow: "new-multi", ParentDir: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.runner.Run(context.Background(), tk); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.hooks.calls != 0 {
		t.Errorf("hook calls = %d, want 0 for an unsatisfied step", f.hooks.calls)
	}
}

func TestRun_PostHookFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"new-multi": multiFlow}, sentinel(flow.SentinelAgentDone))
	f.hooks.err = errors.NewResourceError(errors.ResourceCheckout, "worktree add failed", nil).WithRepo("svcA")
	tk, err := f.store.Create(task.CreateParams{
		Name: "repos", Branch: "feat", Flow: "new-multi", ParentDir: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.runner.Run(context.Background(), tk)
	var resErr *errors.ResourceError
	if !errors.As(err, &resErr) {
		t.Fatalf("Run() error = %v, want the ResourceError", err)
	}

	saved := f.reload(t, tk)
	if saved.Status != task.StatusFailed {
		t.Errorf("Status = %s, want failed", saved.Status)
	}
	if saved.FlowStep != 0 {
		t.Errorf("FlowStep = %d, want 0 so a rerun repeats the step", saved.FlowStep)
	}
	if len(f.invoker.calls) != 1 {
		t.Errorf("calls = %d, want the next step never started", len(f.invoker.calls))
	}
}

func TestRun_RefinerClearsFeedback(t *testing.T) {
	f := newFixture(t, map[string]string{"continue": refineFlow},
		sentinel(flow.SentinelAgentDone),
		sentinel(flow.SentinelInputNeeded),
	)
	var feedbackSeen []bool
	f.invoker.onRun = func(_ int, req agent.Request) {
		fb, _ := req.Task.ReadFeedback()
		feedbackSeen = append(feedbackSeen, fb != "")
	}
	tk := f.singleRepoTask(t, "continue")
	if err := tk.WriteFeedback("use bcrypt"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.runner.Run(context.Background(), tk); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(feedbackSeen) != 2 || !feedbackSeen[0] || feedbackSeen[1] {
		t.Errorf("feedback seen = %v, want present for the refiner and gone after", feedbackSeen)
	}
}

func TestRun_HoldBetweenSteps(t *testing.T) {
	f := newFixture(t, map[string]string{"new": loopFlow}, sentinel(flow.SentinelAgentDone))
	f.invoker.onRun = func(_ int, req agent.Request) {
		// Another process puts the task on hold while the agent runs
		held, err := f.store.Load(req.Task.ID())
		if err != nil {
			t.Fatal(err)
		}
		held.Status = task.StatusOnHold
		if err := f.store.Save(held); err != nil {
			t.Fatal(err)
		}
	}
	tk := f.singleRepoTask(t, "new")

	report, err := f.runner.Run(context.Background(), tk)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Status != task.StatusOnHold {
		t.Errorf("Status = %s, want on hold", report.Status)
	}
	saved := f.reload(t, tk)
	if saved.Status != task.StatusOnHold || saved.FlowStep != 1 {
		t.Errorf("saved = %s at step %d, want on hold at step 1", saved.Status, saved.FlowStep)
	}
	if len(f.invoker.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(f.invoker.calls))
	}
}

func TestRun_ProgressOutput(t *testing.T) {
	f := newFixture(t, map[string]string{"new": loopFlow}, sentinel(flow.SentinelTaskComplete))
	tk := f.singleRepoTask(t, "new")

	if _, err := f.runner.Run(context.Background(), tk); err != nil {
		t.Fatal(err)
	}
	out := f.out.String()
	for _, want := range []string{"Step 0: running agent planner (until: AGENT_DONE)", "Task complete"} {
		if !strings.Contains(out, want) {
			t.Errorf("output = %q, want %q", out, want)
		}
	}
}

func TestRun_LoopIterationLimit(t *testing.T) {
	results := []agent.Result{sentinel(flow.SentinelAgentDone)} // planner
	for i := 0; i < 10; i++ {
		results = append(results, sentinel(flow.SentinelAgentDone)) // coder, checker never completes
	}
	f := newFixture(t, map[string]string{"new": loopFlow}, results...)
	f.cfg.Flow.MaxLoopIterations = 2
	tk := f.singleRepoTask(t, "new")

	report, err := f.runner.Run(context.Background(), tk)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"planner", "coder", "checker", "coder", "checker"}
	if got := f.invoker.agents(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("agents = %v, want %v", got, want)
	}
	if report.Status != task.StatusOnHold {
		t.Errorf("Status = %s, want on_hold", report.Status)
	}
	if !errors.Is(report.Last.Err, errors.ErrLoopLimit) {
		t.Errorf("Last.Err = %v, want ErrLoopLimit", report.Last.Err)
	}
	var agentErr *errors.AgentError
	if !errors.As(report.Last.Err, &agentErr) || agentErr.Agent != "checker" {
		t.Errorf("Last.Err = %v, want an AgentError for checker", report.Last.Err)
	}

	saved := f.reload(t, tk)
	if saved.Status != task.StatusOnHold || saved.FlowStep != 1 {
		t.Errorf("saved = %s at %d, want on_hold at the loop start", saved.Status, saved.FlowStep)
	}
	if !strings.Contains(f.out.String(), "loop iteration limit") {
		t.Errorf("output should explain the hold:\n%s", f.out.String())
	}
}

func TestRun_LoopIterationLimitCountsTestFailures(t *testing.T) {
	f := newFixture(t, map[string]string{"new": loopFlow},
		sentinel(flow.SentinelAgentDone), // planner
		sentinel(flow.SentinelTestsFail), // coder, back to loop start
		sentinel(flow.SentinelTestsFail), // coder, limit
	)
	f.cfg.Flow.MaxLoopIterations = 2
	tk := f.singleRepoTask(t, "new")

	report, err := f.runner.Run(context.Background(), tk)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Status != task.StatusOnHold || report.Steps != 3 {
		t.Errorf("Report = %+v, want on_hold after 3 steps", report)
	}
}

func rebaseCommand(t *testing.T) *command.Command {
	t.Helper()
	c, err := command.Parse([]byte(`name: Rebase
id: rebase
requires_arg: branch
steps:
  - agent: rebase-executor
    until: AGENT_DONE
`), "rebase.yaml")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRunCommand_RestoresFlowPosition(t *testing.T) {
	tests := []struct {
		name       string
		before     task.Status
		result     agent.Result
		wantStatus task.Status
	}{
		{"done task stays done", task.StatusDone, sentinel(flow.SentinelAgentDone), task.StatusDone},
		{"stopped task stays stopped", task.StatusStopped, sentinel(flow.SentinelAgentDone), task.StatusStopped},
		{"running task is stopped", task.StatusRunning, sentinel(flow.SentinelAgentDone), task.StatusStopped},
		{"pause is kept", task.StatusDone, sentinel(flow.SentinelInputNeeded), task.StatusInputNeeded},
		{"failure is kept", task.StatusStopped, sentinel(flow.SentinelNone), task.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{"new": loopFlow}, tt.result)
			tk := f.singleRepoTask(t, "new")
			tk.FlowStep = 2
			tk.Status = tt.before
			if err := f.store.Save(tk); err != nil {
				t.Fatal(err)
			}

			var during string
			f.invoker.onRun = func(_ int, req agent.Request) {
				during = req.Task.FlowName
			}

			report, err := f.runner.RunCommand(context.Background(), tk, rebaseCommand(t))
			if err != nil {
				t.Fatalf("RunCommand() error = %v", err)
			}

			if during != "rebase" {
				t.Errorf("flow_name while running = %q, want rebase", during)
			}
			if got := f.invoker.agents(); len(got) != 1 || got[0] != "rebase-executor" {
				t.Errorf("agents = %v, want [rebase-executor]", got)
			}
			saved := f.reload(t, tk)
			if saved.FlowName != "new" || saved.FlowStep != 2 {
				t.Errorf("flow position = %s/%d, want new/2", saved.FlowName, saved.FlowStep)
			}
			if saved.Status != tt.wantStatus || report.Status != tt.wantStatus {
				t.Errorf("status = %s (report %s), want %s", saved.Status, report.Status, tt.wantStatus)
			}
			if _, ok := task.ActiveRun(saved); ok {
				t.Error("flow-run lock should be released")
			}
		})
	}
}

func TestRunCommand_Locked(t *testing.T) {
	f := newFixture(t, map[string]string{"new": loopFlow})
	tk := f.singleRepoTask(t, "new")

	lock, err := task.AcquireRunLock(tk, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	if _, err := f.runner.RunCommand(context.Background(), tk, rebaseCommand(t)); !errors.Is(err, errors.ErrTaskLocked) {
		t.Errorf("RunCommand() error = %v, want ErrTaskLocked", err)
	}
	if saved := f.reload(t, tk); saved.FlowName != "new" {
		t.Errorf("FlowName = %q, want new", saved.FlowName)
	}
}
