package cmd

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/task"
	"github.com/spf13/cobra"
)

var continueCmd = &cobra.Command{
	Use:   "continue <task> [feedback...]",
	Short: "Run the continue flow with follow-up feedback",
	Long: `Switch the task to the continue flow and start it from its first step.

The feedback given on the command line becomes FEEDBACK.md. Without it,
the oldest queued feedback is used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContinue,
}

var stopCmd = &cobra.Command{
	Use:   "stop <task>",
	Short: "Stop the flow-run driving a task",
	Long: `Stop the flow-run driving a task. The flow-run is sent SIGTERM and,
with its agent, killed if it has not exited after a grace period. The
task is left stopped and can be resumed.`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <task>",
	Short: "Resume a paused or stopped task",
	Long: `Resume a task from its current step.

A task waiting for input is resumed once its question has been answered in
TASK.md. A task on hold is released. A stopped task simply starts again.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

var holdCmd = &cobra.Command{
	Use:   "hold <task>",
	Short: "Put a task on hold",
	Long: `Put a task on hold. A flow-run in progress finishes its current agent
step and then stops advancing.`,
	Args: cobra.ExactArgs(1),
	RunE: runHold,
}

var restartCmd = &cobra.Command{
	Use:   "restart <task>",
	Short: "Restart a task's flow from a given step",
	Long:  `Move the task to --step of its flow and start it again. Done and failed tasks are revived.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRestart,
}

var (
	lifecycleStart string
	restartStep    int
)

func init() {
	rootCmd.AddCommand(continueCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(holdCmd)
	rootCmd.AddCommand(restartCmd)

	addStartFlag(continueCmd, &lifecycleStart)
	addStartFlag(resumeCmd, &lifecycleStart)
	addStartFlag(restartCmd, &lifecycleStart)
	restartCmd.Flags().IntVar(&restartStep, "step", 0, "Flow step to restart from")
}

func runContinue(cmd *cobra.Command, args []string) error {
	mode, err := parseStartMode(lifecycleStart)
	if err != nil {
		return err
	}
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}
	if err := app.service.ContinueTask(t, strings.Join(args[1:], " ")); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Task %s continues with flow %s\n", t.ID(), t.FlowName)
	return startFlow(cmd, t, mode)
}

func runStop(cmd *cobra.Command, args []string) error {
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}
	if err := app.service.StopTask(t); err != nil {
		return errors.Wrapf(err, "failed to stop %s", t.ID())
	}
	fmt.Fprintf(out(cmd), "Task %s is %s\n", t.ID(), t.Status)
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
	mode, err := parseStartMode(lifecycleStart)
	if err != nil {
		return err
	}
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}

	switch t.Status {
	case task.StatusInputNeeded:
		_, err = app.service.ResumeAfterAnswering(t)
	case task.StatusOnHold:
		_, err = app.service.Unhold(t)
	case task.StatusDone, task.StatusFailed:
		return fmt.Errorf("%w: %s is %s; use continue or restart", errors.ErrTaskTerminal, t.ID(), t.Status)
	}
	if err != nil {
		return err
	}
	if _, running := task.ActiveRun(t); running {
		fmt.Fprintf(out(cmd), "Task %s is already being run\n", t.ID())
		return nil
	}

	fmt.Fprintf(out(cmd), "Resuming %s at %s\n", t.ID(), describeStep(t))
	return startFlow(cmd, t, mode)
}

func runHold(cmd *cobra.Command, args []string) error {
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}
	if err := app.service.Hold(t); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Task %s is on hold\n", t.ID())
	return nil
}

func runRestart(cmd *cobra.Command, args []string) error {
	mode, err := parseStartMode(lifecycleStart)
	if err != nil {
		return err
	}
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}
	if err := app.service.Restart(t, restartStep); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Task %s restarts at %s\n", t.ID(), describeStep(t))
	return startFlow(cmd, t, mode)
}
