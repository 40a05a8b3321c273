// Package agent invokes the external agent process for one flow step.
//
// An agent is a black box: it receives the assembled prompt on stdin, runs
// in the task's working directory and reports how it finished by printing
// a sentinel token. The invoker streams every stdout line into the task's
// agent.log, remembers the last sentinel it saw and returns the exit
// status. It never retries.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/flow"
	"github.com/Iron-Ham/agman/internal/logging"
	"github.com/Iron-Ham/agman/internal/task"
)

// markerTimestamp is the time format of the agent.log markers.
const markerTimestamp = "2006-01-02 15:04:05 UTC"

// waitDelay bounds how long Wait blocks on the output pipes after the
// process group has been signalled.
const waitDelay = 10 * time.Second

// maxStderr caps the stderr kept for the log record of a failed run.
const maxStderr = 4096

// Request describes one agent run.
type Request struct {
	Agent   string
	Prompt  string
	WorkDir string
	Task    *task.Task
}

// Result is the observable outcome of one agent run.
type Result struct {
	RunID    string
	Output   string
	ExitCode int
	Sentinel flow.Sentinel
	// Cancelled is set when the context was cancelled or the process was
	// killed by a signal.
	Cancelled bool
}

// RunResult reduces r to what flow classification needs.
func (r Result) RunResult() flow.RunResult {
	return flow.RunResult{ExitCode: r.ExitCode, Sentinel: r.Sentinel, Cancelled: r.Cancelled}
}

// Invoker starts agent processes.
type Invoker struct {
	command string
	args    []string
	// echo mirrors agent output, typically to the terminal running flow-run
	echo   io.Writer
	logger *logging.Logger
	now    func() time.Time
}

// New creates an Invoker from the agent settings of cfg. Output lines are
// mirrored to echo when it is non-nil.
func New(cfg *config.Config, echo io.Writer, logger *logging.Logger) *Invoker {
	return NewWithCommand(cfg.Agent.Command, cfg.Agent.Args, echo, logger)
}

// NewWithCommand creates an Invoker running command with args.
func NewWithCommand(command string, args []string, echo io.Writer, logger *logging.Logger) *Invoker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if echo == nil {
		echo = io.Discard
	}
	return &Invoker{
		command: command,
		args:    append([]string{}, args...),
		echo:    echo,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one agent process and blocks until it exits. A non-zero
// exit or a missing sentinel is reported through Result, not as an
// error; errors are reserved for failing to start the process or to
// write agent.log.
func (i *Invoker) Run(ctx context.Context, req Request) (Result, error) {
	res := Result{RunID: uuid.NewString(), ExitCode: -1}
	log := i.logger.WithTask(req.Task.ID()).WithAgent(req.Agent).WithRun(res.RunID)

	if err := req.Task.AppendAgentLog(fmt.Sprintf("\n--- Agent: %s started at %s [run %s] ---",
		req.Agent, i.now().Format(markerTimestamp), res.RunID)); err != nil {
		return res, err
	}

	cmd := exec.CommandContext(ctx, i.command, i.args...)
	cmd.Dir = req.WorkDir
	cmd.Stdin = strings.NewReader(req.Prompt)
	// The agent gets its own process group so cancellation reaches the
	// tools it spawned as well.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = waitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, max: maxStderr}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return res, errors.NewAgentError(req.Agent, err)
	}
	if err := cmd.Start(); err != nil {
		return res, errors.NewAgentError(req.Agent, fmt.Errorf("failed to start %s: %w", i.command, err))
	}
	log.Info("agent started", "pid", cmd.Process.Pid, "dir", req.WorkDir)

	var output strings.Builder
	reader := bufio.NewReader(stdout)
	var logErr error
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			output.WriteString(line)
			output.WriteByte('\n')
			if s := flow.DetectSentinel(line); s != flow.SentinelNone {
				res.Sentinel = s
			}
			if logErr == nil {
				logErr = req.Task.AppendAgentLog(line)
			}
			fmt.Fprintln(i.echo, line)
		}
		if readErr != nil {
			break
		}
	}

	waitErr := cmd.Wait()
	res.Output = output.String()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
		if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			res.Cancelled = true
		}
	}
	if ctx.Err() != nil {
		res.Cancelled = true
	}

	if err := req.Task.AppendAgentLog(fmt.Sprintf("\n--- Agent: %s finished at %s with: %s (exit: %d) ---",
		req.Agent, i.now().Format(markerTimestamp), res.Sentinel, res.ExitCode)); err != nil && logErr == nil {
		logErr = err
	}

	switch {
	case res.Cancelled:
		log.Warn("agent cancelled", "exit_code", res.ExitCode)
	case waitErr != nil:
		log.Warn("agent exited abnormally", "exit_code", res.ExitCode, "error", waitErr,
			"stderr", strings.TrimSpace(stderr.String()))
	default:
		log.Info("agent finished", "sentinel", res.Sentinel.String())
	}

	return res, logErr
}

// limitedWriter keeps the first max bytes written to it and drops the rest.
type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
