package task

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func newFileTask(t *testing.T) *Task {
	t.Helper()
	store, cfg := newTestStore(t)
	tk, err := store.Create(singleRepoParams(cfg))
	if err != nil {
		t.Fatal(err)
	}
	return tk
}

func TestFeedbackQueue(t *testing.T) {
	tk := newFileTask(t)

	if q := tk.FeedbackQueue(); len(q) != 0 {
		t.Fatalf("new task queue = %v, want empty", q)
	}
	for i, item := range []string{"first", "second", "third"} {
		n, err := tk.QueueFeedback(item)
		if err != nil {
			t.Fatal(err)
		}
		if n != i+1 {
			t.Errorf("QueueFeedback() = %d, want %d", n, i+1)
		}
	}

	if err := tk.RemoveQueuedFeedback(1); err != nil {
		t.Fatal(err)
	}
	if err := tk.RemoveQueuedFeedback(9); err != nil {
		t.Errorf("out of range remove should be ignored, got %v", err)
	}
	if q := tk.FeedbackQueue(); !reflect.DeepEqual(q, []string{"first", "third"}) {
		t.Errorf("queue = %v", q)
	}

	head, ok, err := tk.PopFeedback()
	if err != nil || !ok || head != "first" {
		t.Errorf("PopFeedback() = (%q, %v, %v)", head, ok, err)
	}
	if _, _, err := tk.PopFeedback(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := tk.PopFeedback(); ok {
		t.Error("PopFeedback() on empty queue should report false")
	}
}

func TestFeedbackFile(t *testing.T) {
	tk := newFileTask(t)

	if fb, err := tk.ReadFeedback(); err != nil || fb != "" {
		t.Errorf("ReadFeedback() = (%q, %v), want empty", fb, err)
	}
	if err := tk.WriteFeedback("use the new API"); err != nil {
		t.Fatal(err)
	}
	if fb, _ := tk.ReadFeedback(); fb != "use the new API" {
		t.Errorf("ReadFeedback() = %q", fb)
	}
	if err := tk.ClearFeedback(); err != nil {
		t.Fatal(err)
	}
	if err := tk.ClearFeedback(); err != nil {
		t.Errorf("clearing twice should be a no-op, got %v", err)
	}
	if fb, _ := tk.ReadFeedback(); fb != "" {
		t.Errorf("feedback not cleared: %q", fb)
	}
}

func TestAgentLog(t *testing.T) {
	tk := newFileTask(t)

	if err := tk.AppendAgentLog("line one"); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := tk.AppendFeedbackToLog("please retry", at); err != nil {
		t.Fatal(err)
	}

	log, err := tk.ReadAgentLog()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"line one\n",
		"--- User feedback at 2026-03-04 05:06:07 UTC ---\nplease retry\n--- End user feedback ---\n",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("agent.log missing %q:\n%s", want, log)
		}
	}
}

func TestNotes(t *testing.T) {
	tk := newFileTask(t)
	if err := tk.WriteNotes("remember the migration"); err != nil {
		t.Fatal(err)
	}
	if notes, _ := tk.ReadNotes(); notes != "remember the migration" {
		t.Errorf("ReadNotes() = %q", notes)
	}
}

func TestTailLines(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"a\nb\nc\n", 2, "b\nc"},
		{"a\nb", 5, "a\nb"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := TailLines(tt.in, tt.n); got != tt.want {
			t.Errorf("TailLines(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
