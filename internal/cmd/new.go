package cmd

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/usecase"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new <repo> <branch> [description...]",
	Short: "Create a task for one repository",
	Long: `Create a task for a repository under repos_dir.

A worktree for <branch> is created at <repos_dir>/<repo>-wt/<branch> and a
tmux session is opened in it. The task then starts its flow according to
--start: dispatched into the session's agman window (default), run in the
foreground, or not at all.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runNew,
}

var newMultiCmd = &cobra.Command{
	Use:   "new-multi <parent-dir> <branch> [description...]",
	Short: "Create a task spanning the repositories under a directory",
	Long: `Create a multi-repo task named after <parent-dir>.

No worktrees are created up front. The first agent of the multi-repo flow
inspects the repositories under <parent-dir> and lists the relevant ones
in TASK.md; the setup hook then provisions a worktree and session for
each of them.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runNewMulti,
}

var (
	newFlow        string
	newReviewAfter bool
	newStart       string
)

func init() {
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(newMultiCmd)

	newCmd.Flags().StringVar(&newFlow, "flow", "", "Flow to run (default: flow.default)")
	newCmd.Flags().BoolVar(&newReviewAfter, "review-after", false, "Request a review once the flow completes")
	addStartFlag(newCmd, &newStart)

	newMultiCmd.Flags().StringVar(&newFlow, "flow", "", "Flow to run (default: flow.multi)")
	addStartFlag(newMultiCmd, &newStart)
}

func runNew(cmd *cobra.Command, args []string) error {
	mode, err := parseStartMode(newStart)
	if err != nil {
		return err
	}

	t, err := app.service.CreateTask(cmd.Context(), usecase.CreateTaskParams{
		Repo:        args[0],
		Branch:      args[1],
		Description: strings.Join(args[2:], " "),
		Flow:        newFlow,
		ReviewAfter: newReviewAfter,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create task")
	}

	fmt.Fprintf(out(cmd), "Created task %s\n", t.ID())
	if entry, err := t.PrimaryRepo(); err == nil {
		fmt.Fprintf(out(cmd), "  Worktree: %s\n", entry.WorktreePath)
		fmt.Fprintf(out(cmd), "  Session:  %s\n", entry.TmuxSession)
	}
	fmt.Fprintf(out(cmd), "  Task dir: %s\n", t.Dir)
	return startFlow(cmd, t, mode)
}

func runNewMulti(cmd *cobra.Command, args []string) error {
	mode, err := parseStartMode(newStart)
	if err != nil {
		return err
	}

	t, err := app.service.CreateMultiRepoTask(cmd.Context(), usecase.CreateMultiRepoTaskParams{
		ParentDir:   args[0],
		Branch:      args[1],
		Description: strings.Join(args[2:], " "),
		Flow:        newFlow,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create task")
	}

	fmt.Fprintf(out(cmd), "Created multi-repo task %s\n", t.ID())
	fmt.Fprintf(out(cmd), "  Parent:   %s\n", t.ParentDir)
	fmt.Fprintf(out(cmd), "  Session:  %s\n", t.ParentSession())
	fmt.Fprintf(out(cmd), "  Task dir: %s\n", t.Dir)
	return startFlow(cmd, t, mode)
}
