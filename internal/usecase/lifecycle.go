package usecase

import (
	"fmt"

	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/flow"
	"github.com/Iron-Ham/agman/internal/task"
)

// StopTask stops the flow-run driving t, if any, and records the task as
// stopped. The flow-run is asked to exit with SIGTERM and killed with its
// agent if it does not exit within StopGrace. Stopping a task that is
// already stopped or terminal is a no-op.
func (s *Service) StopTask(t *task.Task) error {
	lock, running := task.ActiveRun(t)
	if !running && (t.Status == task.StatusStopped || t.Status.IsTerminal()) {
		return nil
	}

	log := s.logger.WithTask(t.ID())
	if running {
		if err := lock.Terminate(s.StopGrace); err != nil {
			return err
		}
		log.Info("flow-run terminated", "pid", lock.PID)
		// The flow-run may have saved its own final state on the way out
		if fresh, err := s.store.Load(t.ID()); err == nil {
			*t = *fresh
		}
	}
	if t.Status.IsTerminal() {
		return nil
	}

	t.Status = task.StatusStopped
	t.CurrentAgent = ""
	return s.store.Save(t)
}

// ResumeAfterAnswering moves a task waiting for input back to running
// once the user has answered in TASK.md. It reports whether the status
// changed; tasks in any other status are left alone.
func (s *Service) ResumeAfterAnswering(t *task.Task) (bool, error) {
	if t.Status != task.StatusInputNeeded {
		return false, nil
	}
	t.Status = task.StatusRunning
	return true, s.store.Save(t)
}

// Hold parks a running, stopped or input-needed task until Unhold.
func (s *Service) Hold(t *task.Task) error {
	switch t.Status {
	case task.StatusOnHold:
		return nil
	case task.StatusRunning, task.StatusStopped, task.StatusInputNeeded:
		t.Status = task.StatusOnHold
		return s.store.Save(t)
	default:
		return fmt.Errorf("%w: %s is %s", errors.ErrTaskTerminal, t.ID(), t.Status)
	}
}

// Unhold releases a task on hold back to running. It reports whether the
// status changed.
func (s *Service) Unhold(t *task.Task) (bool, error) {
	if t.Status != task.StatusOnHold {
		return false, nil
	}
	t.Status = task.StatusRunning
	return true, s.store.Save(t)
}

// Restart rewinds or forwards t to step of its flow and marks it running.
// It also revives done and failed tasks.
func (s *Service) Restart(t *task.Task, step int) error {
	f, err := flow.Load(s.cfg, t.FlowName)
	if err != nil {
		return err
	}
	if !f.ValidIndex(step) {
		return errors.NewValidationError(fmt.Sprintf("flow %s has steps 0-%d", f.Name, f.Len()-1)).
			WithField("step").WithValue(step)
	}
	if _, running := task.ActiveRun(t); running {
		return errors.ErrTaskLocked
	}

	t.FlowStep = step
	t.Status = task.StatusRunning
	t.CurrentAgent = ""
	if err := s.store.Save(t); err != nil {
		return err
	}
	s.logger.WithTask(t.ID()).Info("task restarted", "step", step)
	return nil
}

// ContinueTask switches t to the continue flow so its follow-up work runs
// from the first step. feedback, when given, becomes FEEDBACK.md;
// otherwise the oldest queued item is used. Without any feedback the task
// is left unchanged.
func (s *Service) ContinueTask(t *task.Task, feedback string) error {
	if _, running := task.ActiveRun(t); running {
		return errors.ErrTaskLocked
	}
	if _, err := flow.Load(s.cfg, s.cfg.Flow.Continue); err != nil {
		return err
	}

	if feedback != "" {
		if err := s.WriteImmediateFeedback(t, feedback); err != nil {
			return err
		}
	} else {
		_, ok, err := s.PopAndApplyFeedback(t)
		if err != nil {
			return err
		}
		if !ok {
			if pending, _ := t.ReadFeedback(); pending == "" {
				return errors.NewValidationError("no feedback to continue with").WithField("feedback")
			}
		}
	}

	t.FlowName = s.cfg.Flow.Continue
	t.FlowStep = 0
	t.Status = task.StatusRunning
	t.CurrentAgent = ""
	if err := s.store.Save(t); err != nil {
		return err
	}
	s.logger.WithTask(t.ID()).Info("task continued", "flow", t.FlowName)
	return nil
}

// NextQueued prepares the follow-up run after a flow-run ended. When auto
// continue is enabled, t is done and feedback is queued, the oldest item
// is applied and t is switched to the continue flow. It reports whether
// another flow-run should start.
func (s *Service) NextQueued(t *task.Task) (bool, error) {
	if !s.cfg.Flow.AutoContinue || t.Status != task.StatusDone || len(t.FeedbackQueue()) == 0 {
		return false, nil
	}
	if err := s.ContinueTask(t, ""); err != nil {
		return false, err
	}
	return true, nil
}
