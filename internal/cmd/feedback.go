package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <task> [feedback...]",
	Short: "Give a task follow-up feedback",
	Long: `Give a task follow-up feedback.

While the task's flow is still running the feedback is queued; queued
feedback is applied one item at a time once the flow completes (see
flow.auto_continue). Otherwise the task continues with it right away.

Pass "-" as the feedback to read it from stdin. Use --list, --remove and
--clear to manage the queue.`,
	Example: `  agman feedback app--feature-login "also cover the logout path"
  agman feedback feature-login --list
  agman feedback feature-login --remove 0`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFeedback,
}

var notesCmd = &cobra.Command{
	Use:   "notes <task> [notes...]",
	Short: "Show or replace a task's notes",
	Long: `Without notes, print the task's notes. Otherwise replace them; "-" reads
them from stdin. Notes are for humans and are never sent to agents.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNotes,
}

var (
	feedbackList   bool
	feedbackRemove int
	feedbackClear  bool
	feedbackStart  string
)

func init() {
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(notesCmd)

	feedbackCmd.Flags().BoolVar(&feedbackList, "list", false, "List queued feedback")
	feedbackCmd.Flags().IntVar(&feedbackRemove, "remove", -1, "Remove the queued feedback at this index")
	feedbackCmd.Flags().BoolVar(&feedbackClear, "clear", false, "Clear queued feedback")
	addStartFlag(feedbackCmd, &feedbackStart)
}

func runFeedback(cmd *cobra.Command, args []string) error {
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}
	w := out(cmd)

	switch {
	case feedbackList:
		queue := t.FeedbackQueue()
		if len(queue) == 0 {
			fmt.Fprintln(w, "No queued feedback.")
			return nil
		}
		printQueue(w, queue)
		return nil
	case feedbackRemove >= 0:
		if err := app.service.RemoveQueuedFeedback(t, feedbackRemove); err != nil {
			return err
		}
		fmt.Fprintf(w, "Removed queued feedback %d (%d left)\n", feedbackRemove, len(t.FeedbackQueue()))
		return nil
	case feedbackClear:
		if err := app.service.ClearQueuedFeedback(t); err != nil {
			return err
		}
		fmt.Fprintln(w, "Cleared queued feedback")
		return nil
	}

	mode, err := parseStartMode(feedbackStart)
	if err != nil {
		return err
	}
	text, err := argsOrStdin(cmd, args[1:])
	if err != nil {
		return err
	}
	queued, err := app.service.SubmitFeedback(t, text)
	if err != nil {
		return err
	}
	if queued {
		fmt.Fprintf(w, "Feedback queued (%d pending)\n", len(t.FeedbackQueue()))
		return nil
	}
	fmt.Fprintf(w, "Task %s continues with flow %s\n", t.ID(), t.FlowName)
	return startFlow(cmd, t, mode)
}

func runNotes(cmd *cobra.Command, args []string) error {
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}
	if len(args) == 1 {
		notes, err := t.ReadNotes()
		if err != nil {
			return err
		}
		fmt.Fprint(out(cmd), notes)
		return nil
	}

	notes, err := argsOrStdin(cmd, args[1:])
	if err != nil {
		return err
	}
	if err := app.service.SaveNotes(t, notes); err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), "Notes saved")
	return nil
}

// argsOrStdin joins args, or reads stdin when the only arg is "-".
func argsOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}
