// Package logging provides structured logging for agman.
//
// It wraps Go's log/slog with a JSON handler writing to <base>/agman.log,
// so that flow-runs started inside tmux windows leave a filterable trail
// next to the task directories they touch.
//
// # Context Propagation
//
// Child loggers carry persistent attributes:
//
//	taskLog := logger.WithTask("app--feat")
//	runLog := taskLog.WithAgent("coder").WithRun(runID)
//	runLog.Info("agent finished", "sentinel", "AGENT_DONE", "exit_code", 0)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"agent finished","task_id":"app--feat","agent":"coder","run_id":"...","sentinel":"AGENT_DONE","exit_code":0}
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// share the parent's writer.
//
// A Logger is constructed once per process and passed explicitly to the
// components that log; there is no package-level default.
package logging
