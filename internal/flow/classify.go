package flow

import (
	"github.com/Iron-Ham/agman/internal/errors"
)

// RunResult is what the flow needs to know about one agent run.
type RunResult struct {
	ExitCode  int
	Sentinel  Sentinel
	Cancelled bool
}

// Transition is the task-level consequence of a classified run.
type Transition int

const (
	// Advance moves to Outcome.Next and keeps running.
	Advance Transition = iota
	// LoopRepeat jumps back to the first step of the loop body.
	LoopRepeat
	// Complete marks the task done.
	Complete
	// PauseInput waits for the user to answer a question.
	PauseInput
	// PauseHold parks the task until a human releases it.
	PauseHold
	// Fail marks the task failed.
	Fail
	// Stop records that the run was cancelled from outside.
	Stop
)

func (t Transition) String() string {
	switch t {
	case Advance:
		return "advance"
	case LoopRepeat:
		return "loop-repeat"
	case Complete:
		return "complete"
	case PauseInput:
		return "input-needed"
	case PauseHold:
		return "on-hold"
	case Fail:
		return "fail"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Outcome is the classification of one agent run.
type Outcome struct {
	Transition Transition
	// Next is the flow_step to persist for Advance and LoopRepeat.
	Next int
	// Satisfied is true when the step met its stop condition, which is
	// when its post hook must run.
	Satisfied bool
	// Err explains Fail and failure-driven PauseHold outcomes.
	Err error
}

// Classify decides what happens after the step at index ran. Rules are
// evaluated in order: cancellation, abnormal exit, TASK_COMPLETE,
// INPUT_NEEDED, TASK_BLOCKED, the step's own stop condition, TESTS_FAIL
// inside a loop, and finally unrecognized output.
func (f *Flow) Classify(index int, res RunResult) Outcome {
	step, ok := f.Step(index)
	if !ok {
		return Outcome{Transition: Complete}
	}

	if res.Cancelled {
		return Outcome{Transition: Stop, Next: index}
	}

	if res.ExitCode != 0 {
		err := errors.NewAgentError(step.Agent, errors.ErrAgentExit).WithExitCode(res.ExitCode)
		return f.onFail(step, res.Sentinel, err)
	}

	switch res.Sentinel {
	case SentinelTaskComplete:
		return Outcome{Transition: Complete, Next: index}
	case SentinelInputNeeded:
		return Outcome{Transition: PauseInput, Next: index}
	case SentinelTaskBlocked:
		if step.OnBlocked == ActionContinue {
			return f.satisfied(step, res.Sentinel)
		}
		return Outcome{Transition: PauseHold, Next: index}
	}

	if res.Sentinel == step.Until || (step.IsLoopTail() && res.Sentinel == step.Loop.Until) {
		return f.satisfied(step, res.Sentinel)
	}

	if res.Sentinel == SentinelTestsFail && step.InLoop() {
		return Outcome{Transition: LoopRepeat, Next: step.Loop.Start}
	}

	cause := errors.ErrUnexpectedSentinel
	if res.Sentinel == SentinelNone {
		cause = errors.ErrNoSentinel
	}
	err := errors.NewAgentError(step.Agent, cause).WithSentinel(res.Sentinel.String())
	return f.onFail(step, res.Sentinel, err)
}

// satisfied computes where a step that met its stop condition leads.
func (f *Flow) satisfied(step Step, sentinel Sentinel) Outcome {
	if step.IsLoopTail() && sentinel != step.Loop.Until {
		return Outcome{Transition: LoopRepeat, Next: step.Loop.Start, Satisfied: true}
	}
	next := step.Index + 1
	if next >= len(f.Steps) {
		return Outcome{Transition: Complete, Next: step.Index, Satisfied: true}
	}
	return Outcome{Transition: Advance, Next: next, Satisfied: true}
}

func (f *Flow) onFail(step Step, sentinel Sentinel, err error) Outcome {
	switch step.OnFail {
	case ActionContinue:
		return f.satisfied(step, sentinel)
	case ActionPause:
		return Outcome{Transition: PauseHold, Next: step.Index, Err: err}
	default:
		return Outcome{Transition: Fail, Next: step.Index, Err: err}
	}
}
