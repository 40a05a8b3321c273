package cmd

import (
	"fmt"

	"github.com/Iron-Ham/agman/internal/discovery"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/tmux"
	"github.com/spf13/cobra"
)

var attachCmd = &cobra.Command{
	Use:   "attach <task>",
	Short: "Attach to a task's tmux session",
	Long: `Attach to the task's tmux session: the parent session of a multi-repo
task, or the session of its repository otherwise. Use --repo to pick the
session of one repository of a multi-repo task. Inside tmux the current
client is switched instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

var reposCmd = &cobra.Command{
	Use:   "repos [dir]",
	Short: "List the git repositories under a directory",
	Long:  `List the git repositories directly under dir (default: repos_dir) with their current branch.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRepos,
}

var attachRepo string

func init() {
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(reposCmd)

	attachCmd.Flags().StringVar(&attachRepo, "repo", "", "Attach to the session of this repository")
}

func runAttach(cmd *cobra.Command, args []string) error {
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}

	session, err := t.AttachSession()
	if err != nil {
		return err
	}
	if attachRepo != "" {
		entry, ok := t.FindRepo(attachRepo)
		if !ok {
			return errors.NewNotFoundError("repository", attachRepo)
		}
		session = entry.TmuxSession
	}
	return tmux.New(app.cfg.Tmux.Socket).Attach(session)
}

func runRepos(cmd *cobra.Command, args []string) error {
	dir := app.cfg.ReposDir
	if len(args) == 1 {
		dir = args[0]
	}

	repos, err := discovery.ListRepos(cmd.Context(), dir)
	if err != nil {
		return err
	}
	w := out(cmd)
	if len(repos) == 0 {
		fmt.Fprintf(w, "No git repositories under %s\n", dir)
		return nil
	}

	p := paletteFor(w)
	width := 0
	for _, r := range repos {
		width = max(width, len(r.Name))
	}
	for _, r := range repos {
		branch := r.Branch
		if branch == "" {
			branch = "(detached)"
		}
		fmt.Fprintf(w, "%-*s  %s  %s\n", width, r.Name, branch, p.muted(r.Path))
	}
	return nil
}
