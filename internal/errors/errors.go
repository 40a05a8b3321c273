// Package errors provides centralized error definitions and error handling utilities
// for agman. It defines the error taxonomy used across the orchestrator, semantic
// error types, and classification helpers.
//
// # Error Types
//
// The taxonomy mirrors the four ways orchestration can go wrong:
//   - ParseError: a malformed flow definition, task-file section or config file
//   - ResourceError: a checkout or terminal-session operation failed
//   - AgentError: the agent process exited abnormally or emitted no usable sentinel
//   - StateError: a persisted task record is corrupt, unreadable or unusable
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewResourceError(errors.ResourceCheckout, "worktree add failed", cause).
//		WithRepo("svcA").WithPath("/code/svcA-wt/feat")
//
//	var resErr *errors.ResourceError
//	if errors.As(err, &resErr) && !resErr.Fatal() {
//		log.Warn("continuing without session", "error", err)
//	}
//
// # Reporting
//
// Errors are reported where they are handled, i.e. where a task state
// transition or a user-visible message results. Intermediate layers wrap
// and return.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Task-related sentinel errors
var (
	// ErrTaskNotFound indicates that no task directory exists for an ID.
	ErrTaskNotFound = New("task not found")
	// ErrTaskAmbiguous indicates that a bare branch name matched several tasks.
	ErrTaskAmbiguous = New("task reference is ambiguous")
	// ErrNoRepos indicates an operation needed a checkout but the task has none yet.
	ErrNoRepos = New("task has no repositories")
	// ErrTaskTerminal indicates that the task is Done or Failed.
	ErrTaskTerminal = New("task is in a terminal state")
	// ErrTaskLocked indicates that another flow-run holds the task.
	ErrTaskLocked = New("task is locked by another flow-run")
	// ErrTaskCorrupted indicates that meta.json could not be decoded.
	ErrTaskCorrupted = New("task record corrupted")
)

// Flow-related sentinel errors
var (
	// ErrFlowNotFound indicates that no definition file exists for a flow name.
	ErrFlowNotFound = New("flow not found")
	// ErrCommandNotFound indicates that no stored command exists for an id.
	ErrCommandNotFound = New("command not found")
	// ErrPromptNotFound indicates that no prompt template exists for an agent.
	ErrPromptNotFound = New("prompt template not found")
	// ErrUnknownHook indicates a post_hook name outside the known set.
	ErrUnknownHook = New("unknown post hook")
	// ErrNoSentinel indicates that the agent output carried no recognized token.
	ErrNoSentinel = New("no sentinel in agent output")
	// ErrUnexpectedSentinel indicates a recognized token the step does not wait for.
	ErrUnexpectedSentinel = New("unexpected sentinel")
	// ErrAgentExit indicates a non-zero exit of the agent process.
	ErrAgentExit = New("agent process exited abnormally")
	// ErrLoopLimit indicates a loop body repeated more often than
	// flow.max_loop_iterations allows in one flow-run.
	ErrLoopLimit = New("loop iteration limit reached")
)

// Resource-related sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrSessionUnavailable indicates that tmux could not be reached.
	ErrSessionUnavailable = New("terminal session unavailable")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// AgmanError is the base interface for all agman errors.
type AgmanError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if repeating the operation may succeed.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Taxonomy
// -----------------------------------------------------------------------------

// ParseError reports a malformed declarative input. The operation that
// triggered the parse fails as a whole; nothing is partially applied.
//
// Example:
//
//	err := errors.NewParseError("loop block has no steps", nil).WithSource("flows/new.yaml")
//	fmt.Println(err) // "parse error [source=flows/new.yaml]: loop block has no steps"
type ParseError struct {
	baseError
	Source string
	Line   int
}

// NewParseError creates a new ParseError.
func NewParseError(message string, cause error) *ParseError {
	return &ParseError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithSource names the file or section that failed to parse.
func (e *ParseError) WithSource(source string) *ParseError {
	e.Source = source
	return e
}

// WithLine records the 1-based line of the failure.
func (e *ParseError) WithLine(line int) *ParseError {
	e.Line = line
	return e
}

// Error returns the formatted error message.
func (e *ParseError) Error() string {
	var parts []string
	if e.Source != "" {
		parts = append(parts, fmt.Sprintf("source=%s", e.Source))
	}
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line=%d", e.Line))
	}
	return e.format("parse error", parts)
}

// Is checks if this error matches the target.
func (e *ParseError) Is(target error) bool {
	if _, ok := target.(*ParseError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ResourceKind distinguishes the two provisioned resources.
type ResourceKind string

const (
	// ResourceCheckout is an isolated branch checkout (git worktree).
	ResourceCheckout ResourceKind = "checkout"
	// ResourceSession is a terminal-multiplexer session.
	ResourceSession ResourceKind = "session"
)

// ResourceError reports a failed checkout or session operation.
// Checkout failures abort the setup that caused them; session failures
// are logged and skipped.
type ResourceError struct {
	baseError
	Kind    ResourceKind
	Repo    string
	Path    string
	Session string
}

// NewResourceError creates a new ResourceError.
func NewResourceError(kind ResourceKind, message string, cause error) *ResourceError {
	severity := SeverityError
	if kind == ResourceSession {
		severity = SeverityWarning
	}
	return &ResourceError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   severity,
			retryable:  true,
			userFacing: true,
		},
		Kind: kind,
	}
}

// WithRepo adds the repository name to the error context.
func (e *ResourceError) WithRepo(repo string) *ResourceError {
	e.Repo = repo
	return e
}

// WithPath adds the checkout path to the error context.
func (e *ResourceError) WithPath(path string) *ResourceError {
	e.Path = path
	return e
}

// WithSession adds the session name to the error context.
func (e *ResourceError) WithSession(session string) *ResourceError {
	e.Session = session
	return e
}

// Fatal reports whether the failure must abort the surrounding setup.
func (e *ResourceError) Fatal() bool {
	return e.Kind == ResourceCheckout
}

// Error returns the formatted error message.
func (e *ResourceError) Error() string {
	var parts []string
	if e.Repo != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repo))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	if e.Session != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.Session))
	}
	return e.format(string(e.Kind)+" error", parts)
}

// Is checks if this error matches the target.
func (e *ResourceError) Is(target error) bool {
	if _, ok := target.(*ResourceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AgentError reports an agent run that did not produce a usable result.
// It is never retried automatically: the task is moved to a
// human-visible state instead.
//
// Example:
//
//	err := errors.NewAgentError("coder", errors.ErrAgentExit).WithExitCode(2)
//	fmt.Println(err) // "agent error [agent=coder, exit=2]: agent run failed: agent process exited abnormally"
type AgentError struct {
	baseError
	Agent    string
	ExitCode int
	Sentinel string
}

// NewAgentError creates a new AgentError.
func NewAgentError(agent string, cause error) *AgentError {
	return &AgentError{
		baseError: baseError{
			message:    "agent run failed",
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
		Agent: agent,
	}
}

// WithExitCode records the agent process exit code.
func (e *AgentError) WithExitCode(code int) *AgentError {
	e.ExitCode = code
	return e
}

// WithSentinel records the token the agent emitted, if any.
func (e *AgentError) WithSentinel(sentinel string) *AgentError {
	e.Sentinel = sentinel
	return e
}

// Error returns the formatted error message.
func (e *AgentError) Error() string {
	var parts []string
	if e.Agent != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.Agent))
	}
	if e.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}
	if e.Sentinel != "" {
		parts = append(parts, fmt.Sprintf("sentinel=%s", e.Sentinel))
	}
	return e.format("agent error", parts)
}

// Is checks if this error matches the target.
func (e *AgentError) Is(target error) bool {
	if _, ok := target.(*AgentError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StateError reports a persisted task record that cannot be used.
// No automatic repair or migration is attempted.
type StateError struct {
	baseError
	TaskID string
	Path   string
}

// NewStateError creates a new StateError.
func NewStateError(message string, cause error) *StateError {
	return &StateError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithTaskID adds the task ID to the error context.
func (e *StateError) WithTaskID(id string) *StateError {
	e.TaskID = id
	return e
}

// WithPath adds the record path to the error context.
func (e *StateError) WithPath(path string) *StateError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *StateError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return e.format("state error", parts)
}

// Is checks if this error matches the target.
func (e *StateError) Is(target error) bool {
	if _, ok := target.(*StateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("task", "app--feat")
//	fmt.Println(err) // "task 'app--feat' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	return e.message
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("flow step out of range").WithField("step").WithValue(9)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a condition that a
// repeated, idempotent call may get past. Agent failures are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var agmanErr AgmanError
	if As(err, &agmanErr) {
		return agmanErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var agmanErr AgmanError
	if As(err, &agmanErr) {
		return agmanErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement AgmanError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var agmanErr AgmanError
	if As(err, &agmanErr) {
		return agmanErr.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
