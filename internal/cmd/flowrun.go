package cmd

import (
	"fmt"
	"slices"

	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/runner"
	"github.com/Iron-Ham/agman/internal/task"
	"github.com/spf13/cobra"
)

var flowRunCmd = &cobra.Command{
	Use:   "flow-run <task>",
	Short: "Run a task's flow in the foreground",
	Long: `Run the task's flow from its current step until it completes, pauses,
fails or is stopped. Agent output is echoed and appended to agent.log.

When flow.auto_continue is set and the flow completes while feedback is
queued, the oldest item is applied and the continue flow runs next.

This is the command dispatched into a task's tmux session; it can also be
run directly.`,
	Args: cobra.ExactArgs(1),
	RunE: runFlowRun,
}

// Start modes for commands that leave a task ready to run.
const (
	startDispatch   = "dispatch"
	startForeground = "foreground"
	startNone       = "none"
)

var startModes = []string{startDispatch, startForeground, startNone}

func init() {
	rootCmd.AddCommand(flowRunCmd)
}

func addStartFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "start", startDispatch, "How to start the flow: dispatch, foreground or none")
}

func parseStartMode(mode string) (string, error) {
	if !slices.Contains(startModes, mode) {
		return "", fmt.Errorf("invalid --start %q (valid: %v)", mode, startModes)
	}
	return mode, nil
}

func runFlowRun(cmd *cobra.Command, args []string) error {
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}
	return runFlowLoop(cmd, t)
}

// startFlow starts t's flow according to mode.
func startFlow(cmd *cobra.Command, t *task.Task, mode string) error {
	switch mode {
	case startForeground:
		return runFlowLoop(cmd, t)
	case startDispatch:
		if err := app.service.DispatchFlowRun(cmd.Context(), t); err != nil {
			if errors.Is(err, errors.ErrSessionUnavailable) {
				return errors.Wrapf(err, "dispatch failed; run agman flow-run %s instead", t.ID())
			}
			return err
		}
		session, _ := t.AttachSession()
		fmt.Fprintf(out(cmd), "Flow dispatched to %s (agman attach %s)\n", session, t.ID())
	}
	return nil
}

// runFlowLoop runs t's flow and keeps going with queued feedback while
// auto continue applies.
func runFlowLoop(cmd *cobra.Command, t *task.Task) error {
	r := runner.New(app.cfg, app.store, out(cmd), app.logger)
	for {
		report, err := r.Run(cmd.Context(), t)
		if err != nil {
			return fmt.Errorf("flow-run %s: %w", t.ID(), err)
		}
		fmt.Fprintf(out(cmd), "%s: %s after %d step(s)\n", t.ID(), report.Status, report.Steps)

		next, err := app.service.NextQueued(t)
		if err != nil {
			return err
		}
		if !next {
			return nil
		}
		fmt.Fprintf(out(cmd), "Continuing with queued feedback (%d left)\n", len(t.FeedbackQueue()))
	}
}
