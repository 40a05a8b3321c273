package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/flow"
	"github.com/Iron-Ham/agman/internal/task"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long:    `List every task, running ones first and most recently updated first within a status.`,
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var showCmd = &cobra.Command{
	Use:   "show <task>",
	Short: "Show a task's state, repositories and TASK.md",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <task>",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Long: `Delete a task's directory. A flow-run still driving the task is stopped
first.

With --everything the worktree, branch and tmux session of every
repository are removed too, as is the parent session of a multi-repo
task.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var (
	listStatus       string
	deleteEverything bool
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)

	listCmd.Flags().StringVar(&listStatus, "status", "", "Only list tasks with this status")
	deleteCmd.Flags().BoolVar(&deleteEverything, "everything", false, "Also remove worktrees, branches and sessions")
}

func runList(cmd *cobra.Command, args []string) error {
	tasks, err := app.service.ListTasks()
	if err != nil {
		return err
	}
	if listStatus != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if string(t.Status) == listStatus {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	w := out(cmd)
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return nil
	}

	p := paletteFor(w)
	idWidth := len("TASK")
	for _, t := range tasks {
		idWidth = max(idWidth, len(t.ID()))
	}
	// Leave room for the other columns on narrow terminals
	idWidth = min(idWidth, max(20, terminalWidth(w, 120)-60))

	fmt.Fprintln(w, p.header(fmt.Sprintf("%-*s  %-12s  %-10s  %-6s  %-14s  %s",
		idWidth, "TASK", "STATUS", "FLOW", "STEP", "AGENT", "UPDATED")))
	for _, t := range tasks {
		agent := t.CurrentAgent
		if agent == "" {
			agent = "-"
		}
		fmt.Fprintf(w, "%s  %s  %-10s  %-6d  %-14s  %s\n",
			padRight(truncate(t.ID(), idWidth), idWidth),
			padRight(p.status(t.Status), 12),
			t.FlowName,
			t.FlowStep,
			agent,
			p.muted(ago(t.UpdatedAt)),
		)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}

	w := out(cmd)
	p := paletteFor(w)
	fmt.Fprintf(w, "%s %s\n", p.header("Task:"), t.ID())
	fmt.Fprintf(w, "  Branch:  %s\n", t.BranchName)
	fmt.Fprintf(w, "  Status:  %s\n", p.status(t.Status))
	fmt.Fprintf(w, "  Flow:    %s\n", describeStep(t))
	if t.CurrentAgent != "" {
		fmt.Fprintf(w, "  Agent:   %s\n", t.CurrentAgent)
	}
	if lock, ok := task.ActiveRun(t); ok {
		fmt.Fprintf(w, "  Run:     pid %d since %s\n", lock.PID, lock.StartedAt.Local().Format("15:04:05"))
	}
	fmt.Fprintf(w, "  Created: %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Updated: %s\n", t.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	if t.IsMultiRepo() {
		fmt.Fprintf(w, "  Parent:  %s\n", t.ParentDir)
	}
	fmt.Fprintf(w, "  Dir:     %s\n", t.Dir)

	fmt.Fprintln(w)
	fmt.Fprintln(w, p.header("Repositories:"))
	if !t.HasRepos() {
		fmt.Fprintln(w, p.muted("  (not set up yet)"))
	}
	for _, r := range t.Repos {
		fmt.Fprintf(w, "  %s\n    worktree: %s\n    session:  %s\n", r.RepoName, r.WorktreePath, r.TmuxSession)
	}

	if queue := t.FeedbackQueue(); len(queue) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, p.header("Queued feedback:"))
		printQueue(w, queue)
	}

	content, err := t.ReadTaskFile()
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, p.muted(strings.Repeat("─", min(terminalWidth(w, 80), 80))))
	fmt.Fprint(w, content)
	if !strings.HasSuffix(content, "\n") {
		fmt.Fprintln(w)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}
	mode := task.DeleteTaskOnly
	if deleteEverything {
		mode = task.DeleteEverything
	}
	if err := app.service.DeleteTask(cmd.Context(), t, mode); err != nil {
		return errors.Wrapf(err, "failed to delete %s", t.ID())
	}
	fmt.Fprintf(out(cmd), "Deleted task %s (%s)\n", t.ID(), mode)
	return nil
}

// describeStep renders the flow position, with the agent of the step
// when the flow loads.
func describeStep(t *task.Task) string {
	f, err := flow.Load(app.cfg, t.FlowName)
	if err != nil {
		return fmt.Sprintf("%s step %d", t.FlowName, t.FlowStep)
	}
	step, ok := f.Step(t.FlowStep)
	if !ok {
		return fmt.Sprintf("%s step %d of %d", t.FlowName, t.FlowStep, f.Len())
	}
	return fmt.Sprintf("%s step %d of %d (%s)", t.FlowName, t.FlowStep, f.Len(), step.Agent)
}

func printQueue(w io.Writer, queue []string) {
	for i, item := range queue {
		first, _, _ := strings.Cut(item, "\n")
		fmt.Fprintf(w, "  [%d] %s\n", i, truncate(first, 100))
	}
}

// padRight pads s to width visible cells; ANSI sequences do not count.
func padRight(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func ago(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
