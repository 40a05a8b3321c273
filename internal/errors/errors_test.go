package errors

import (
	"errors"
	"fmt"
	"testing"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Taxonomy Tests
// -----------------------------------------------------------------------------

func TestParseError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ParseError
		want string
	}{
		{
			name: "message only",
			err:  NewParseError("empty flow", nil),
			want: "parse error: empty flow",
		},
		{
			name: "with source and line",
			err:  NewParseError("unknown sentinel", nil).WithSource("flows/new.yaml").WithLine(4),
			want: "parse error [source=flows/new.yaml, line=4]: unknown sentinel",
		},
		{
			name: "with cause",
			err:  NewParseError("invalid yaml", errors.New("mapping values are not allowed")),
			want: "parse error: invalid yaml: mapping values are not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResourceError(t *testing.T) {
	checkout := NewResourceError(ResourceCheckout, "worktree add failed", errors.New("exit status 128")).
		WithRepo("svcA").WithPath("/code/svcA-wt/feat")
	session := NewResourceError(ResourceSession, "new-session failed", nil).WithSession("(svcA)__feat")

	if !checkout.Fatal() {
		t.Error("checkout failure should be fatal")
	}
	if session.Fatal() {
		t.Error("session failure should not be fatal")
	}
	if checkout.Severity() != SeverityError {
		t.Errorf("checkout Severity() = %v, want %v", checkout.Severity(), SeverityError)
	}
	if session.Severity() != SeverityWarning {
		t.Errorf("session Severity() = %v, want %v", session.Severity(), SeverityWarning)
	}

	want := "checkout error [repo=svcA, path=/code/svcA-wt/feat]: worktree add failed: exit status 128"
	if got := checkout.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	want = "session error [session=(svcA)__feat]: new-session failed"
	if got := session.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAgentError(t *testing.T) {
	err := NewAgentError("coder", ErrAgentExit).WithExitCode(2)

	want := "agent error [agent=coder, exit=2]: agent run failed: agent process exited abnormally"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrAgentExit) {
		t.Error("AgentError should match its cause")
	}
	if IsRetryable(err) {
		t.Error("agent failures must never be retryable")
	}

	unexpected := NewAgentError("checker", ErrUnexpectedSentinel).WithSentinel("TESTS_PASS")
	want = "agent error [agent=checker, sentinel=TESTS_PASS]: agent run failed: unexpected sentinel"
	if got := unexpected.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStateError(t *testing.T) {
	err := NewStateError("failed to decode task record", ErrTaskCorrupted).
		WithTaskID("app--feat").WithPath("/base/tasks/app--feat/meta.json")

	want := "state error [task=app--feat, path=/base/tasks/app--feat/meta.json]: failed to decode task record: task record corrupted"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrTaskCorrupted) {
		t.Error("StateError should match its cause")
	}
}

func TestTaxonomy_TypeMatching(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"parse matches parse", NewParseError("x", nil), &ParseError{}, true},
		{"parse does not match state", NewParseError("x", nil), &StateError{}, false},
		{"resource matches resource", NewResourceError(ResourceSession, "x", nil), &ResourceError{}, true},
		{"agent matches agent", NewAgentError("coder", nil), &AgentError{}, true},
		{"agent does not match resource", NewAgentError("coder", nil), &ResourceError{}, false},
		{"state matches state", NewStateError("x", nil), &StateError{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.target); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAs_ThroughWrapping(t *testing.T) {
	base := NewResourceError(ResourceCheckout, "worktree add failed", nil).WithRepo("svcB")
	wrapped := fmt.Errorf("setup repos: %w", base)

	var resErr *ResourceError
	if !As(wrapped, &resErr) {
		t.Fatal("As() should find ResourceError through wrapping")
	}
	if resErr.Repo != "svcB" {
		t.Errorf("Repo = %q, want %q", resErr.Repo, "svcB")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("task", "app--feat")
	if got := err.Error(); got != "task 'app--feat' not found" {
		t.Errorf("Error() = %q", got)
	}

	withCause := NewNotFoundError("flow", "new").WithCause(ErrFlowNotFound)
	if !Is(withCause, ErrFlowNotFound) {
		t.Error("NotFoundError should match its cause")
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(err), SeverityWarning)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("flow step out of range").WithField("step").WithValue(9)

	want := "validation error [field=step, value=9]: flow step out of range"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
}

// -----------------------------------------------------------------------------
// Helper Tests
// -----------------------------------------------------------------------------

func TestClassificationHelpers_PlainErrors(t *testing.T) {
	plain := errors.New("boom")

	if IsRetryable(plain) {
		t.Error("plain errors are not retryable")
	}
	if IsUserFacing(plain) {
		t.Error("plain errors are not user facing")
	}
	if GetSeverity(plain) != SeverityError {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(plain), SeverityError)
	}
	if GetSeverity(nil) != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want %v", GetSeverity(nil), SeverityDebug)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	err := Wrapf(ErrNoRepos, "load task %s", "repos--feat")
	if err.Error() != "load task repos--feat: task has no repositories" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !Is(err, ErrNoRepos) {
		t.Error("Wrapf() should preserve the chain")
	}
}
