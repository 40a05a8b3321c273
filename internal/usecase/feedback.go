package usecase

import (
	"strings"

	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/task"
)

// QueueFeedback appends feedback to the task's queue and records it in
// agent.log. It returns the new queue length.
func (s *Service) QueueFeedback(t *task.Task, feedback string) (int, error) {
	feedback, err := normalizeFeedback(feedback)
	if err != nil {
		return 0, err
	}
	n, err := t.QueueFeedback(feedback)
	if err != nil {
		return 0, err
	}
	if err := t.AppendFeedbackToLog("(queued) "+feedback, s.now()); err != nil {
		return n, err
	}
	s.logger.WithTask(t.ID()).Info("feedback queued", "queue_length", n)
	return n, nil
}

// WriteImmediateFeedback makes feedback the pending FEEDBACK.md, which the
// refiner consumes on the next continue run.
func (s *Service) WriteImmediateFeedback(t *task.Task, feedback string) error {
	feedback, err := normalizeFeedback(feedback)
	if err != nil {
		return err
	}
	if err := t.WriteFeedback(feedback); err != nil {
		return err
	}
	return t.AppendFeedbackToLog(feedback, s.now())
}

// PopAndApplyFeedback moves the oldest queued item into FEEDBACK.md. It
// reports false when the queue is empty.
func (s *Service) PopAndApplyFeedback(t *task.Task) (string, bool, error) {
	head, ok, err := t.PopFeedback()
	if err != nil || !ok {
		return "", false, err
	}
	if err := t.WriteFeedback(head); err != nil {
		return "", false, err
	}
	s.logger.WithTask(t.ID()).Info("queued feedback applied", "remaining", len(t.FeedbackQueue()))
	return head, true, nil
}

// SubmitFeedback routes feedback by task state: a task whose flow is
// still in progress gets it queued, anything else is continued with it
// right away. It reports whether the feedback was queued.
func (s *Service) SubmitFeedback(t *task.Task, feedback string) (bool, error) {
	if _, running := task.ActiveRun(t); running || t.Status == task.StatusRunning {
		if _, err := s.QueueFeedback(t, feedback); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, s.ContinueTask(t, feedback)
}

// RemoveQueuedFeedback drops the queued item at index.
func (s *Service) RemoveQueuedFeedback(t *task.Task, index int) error {
	if index < 0 || index >= len(t.FeedbackQueue()) {
		return errors.NewValidationError("no queued feedback at index").WithField("index").WithValue(index)
	}
	return t.RemoveQueuedFeedback(index)
}

// ClearQueuedFeedback drops every queued item.
func (s *Service) ClearQueuedFeedback(t *task.Task) error {
	return t.ClearFeedbackQueue()
}

func normalizeFeedback(feedback string) (string, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return "", errors.NewValidationError("feedback is empty").WithField("feedback")
	}
	return feedback, nil
}
