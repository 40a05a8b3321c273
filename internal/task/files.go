package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// InitialTaskFile is the TASK.md content written when a task is created.
func InitialTaskFile(description string) string {
	return fmt.Sprintf("# Goal\n%s\n\n# Plan\n(To be created by planner agent)\n", description)
}

// logTimestamp is the time format used by agent.log markers.
const logTimestamp = "2006-01-02 15:04:05 UTC"

func (t *Task) path(name string) string {
	return filepath.Join(t.Dir, name)
}

// TaskFilePath returns the path of TASK.md.
func (t *Task) TaskFilePath() string { return t.path(TaskFileName) }

// AgentLogPath returns the path of agent.log.
func (t *Task) AgentLogPath() string { return t.path(AgentLogFileName) }

func (t *Task) initFiles(description string) error {
	for _, name := range []string{NotesFileName, AgentLogFileName} {
		p := t.path(name)
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := os.WriteFile(p, nil, 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
	}
	return t.WriteTaskFile(InitialTaskFile(description))
}

// ReadTaskFile returns the current TASK.md. The agent edits this file
// between steps, so callers re-read it instead of caching.
func (t *Task) ReadTaskFile() (string, error) {
	data, err := os.ReadFile(t.TaskFilePath())
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", TaskFileName, err)
	}
	return string(data), nil
}

// WriteTaskFile replaces TASK.md.
func (t *Task) WriteTaskFile(content string) error {
	return atomicWriteFile(t.TaskFilePath(), []byte(content), 0644)
}

// WriteRebaseTarget records the branch argument of a stored command for
// its agents to read.
func (t *Task) WriteRebaseTarget(branch string) error {
	return atomicWriteFile(t.path(RebaseTargetFileName), []byte(branch), 0644)
}

// ReadNotes returns notes.md, or "" if it does not exist.
func (t *Task) ReadNotes() (string, error) {
	return t.readOptional(NotesFileName)
}

// WriteNotes replaces notes.md.
func (t *Task) WriteNotes(notes string) error {
	return atomicWriteFile(t.path(NotesFileName), []byte(notes), 0644)
}

// ReadAgentLog returns the whole agent.log.
func (t *Task) ReadAgentLog() (string, error) {
	return t.readOptional(AgentLogFileName)
}

// AppendAgentLog appends content and a trailing newline to agent.log.
func (t *Task) AppendAgentLog(content string) error {
	f, err := os.OpenFile(t.AgentLogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", AgentLogFileName, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, content); err != nil {
		return fmt.Errorf("failed to append to %s: %w", AgentLogFileName, err)
	}
	return nil
}

// AppendFeedbackToLog records user feedback in agent.log between
// structured markers.
func (t *Task) AppendFeedbackToLog(feedback string, at time.Time) error {
	return t.AppendAgentLog(fmt.Sprintf("\n--- User feedback at %s ---\n%s\n--- End user feedback ---",
		at.UTC().Format(logTimestamp), feedback))
}

// ReadFeedback returns FEEDBACK.md, or "" when no feedback is pending.
func (t *Task) ReadFeedback() (string, error) {
	return t.readOptional(FeedbackFileName)
}

// WriteFeedback replaces FEEDBACK.md.
func (t *Task) WriteFeedback(feedback string) error {
	return atomicWriteFile(t.path(FeedbackFileName), []byte(feedback), 0644)
}

// ClearFeedback removes FEEDBACK.md once it has been consumed.
func (t *Task) ClearFeedback() error {
	return removeIfExists(t.path(FeedbackFileName))
}

// FeedbackQueue returns the queued feedback items, oldest first. A
// missing or unreadable queue file is treated as empty.
func (t *Task) FeedbackQueue() []string {
	data, err := os.ReadFile(t.path(QueueFileName))
	if err != nil {
		return nil
	}
	var queue []string
	if err := json.Unmarshal(data, &queue); err != nil {
		return nil
	}
	return queue
}

// QueueFeedback appends an item to the queue and returns the new length.
func (t *Task) QueueFeedback(feedback string) (int, error) {
	queue := append(t.FeedbackQueue(), feedback)
	if err := t.writeQueue(queue); err != nil {
		return 0, err
	}
	return len(queue), nil
}

// PopFeedback removes and returns the oldest queued item.
func (t *Task) PopFeedback() (string, bool, error) {
	queue := t.FeedbackQueue()
	if len(queue) == 0 {
		return "", false, nil
	}
	head := queue[0]
	if err := t.writeQueue(queue[1:]); err != nil {
		return "", false, err
	}
	return head, true, nil
}

// RemoveQueuedFeedback drops the item at index. Out-of-range indexes are
// ignored.
func (t *Task) RemoveQueuedFeedback(index int) error {
	queue := t.FeedbackQueue()
	if index < 0 || index >= len(queue) {
		return nil
	}
	return t.writeQueue(append(queue[:index], queue[index+1:]...))
}

// ClearFeedbackQueue drops every queued item.
func (t *Task) ClearFeedbackQueue() error {
	return removeIfExists(t.path(QueueFileName))
}

// writeQueue persists the queue; an empty queue removes the file.
func (t *Task) writeQueue(queue []string) error {
	if len(queue) == 0 {
		return t.ClearFeedbackQueue()
	}
	data, err := json.MarshalIndent(queue, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal feedback queue: %w", err)
	}
	return atomicWriteFile(t.path(QueueFileName), data, 0644)
}

func (t *Task) readOptional(name string) (string, error) {
	data, err := os.ReadFile(t.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// TailLines returns at most n trailing lines of s.
func TailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
