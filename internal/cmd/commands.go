package cmd

import (
	"fmt"

	"github.com/Iron-Ham/agman/internal/runner"
	"github.com/spf13/cobra"
)

var runCommandCmd = &cobra.Command{
	Use:   "run-command <task> <command>",
	Short: "Run a stored command on a task",
	Long: `Run a stored command such as create-pr, address-review or rebase on a
task in the foreground.

The command's steps run under the task's flow-run lock like any flow.
The task's own flow position is restored afterwards, so the task can be
resumed or continued where it was. Commands that take a branch (rebase)
need --branch; it is written to .rebase-target in the task directory.`,
	Args: cobra.ExactArgs(2),
	RunE: runRunCommand,
}

var listCommandsCmd = &cobra.Command{
	Use:     "list-commands",
	Aliases: []string{"commands"},
	Short:   "List the stored commands",
	Args:    cobra.NoArgs,
	RunE:    runListCommands,
}

var runCommandBranch string

func init() {
	rootCmd.AddCommand(runCommandCmd)
	rootCmd.AddCommand(listCommandsCmd)

	runCommandCmd.Flags().StringVar(&runCommandBranch, "branch", "", "Branch argument for commands that need one")
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}
	c, err := app.service.PrepareCommand(cmd.Context(), t, args[1], runCommandBranch)
	if err != nil {
		return err
	}

	w := out(cmd)
	fmt.Fprintf(w, "Running command %s on %s\n", c.Name, t.ID())
	if c.Description != "" {
		fmt.Fprintf(w, "  %s\n", c.Description)
	}
	if c.RequiresBranch() {
		fmt.Fprintf(w, "  Target branch: %s\n", runCommandBranch)
	}

	r := runner.New(app.cfg, app.store, w, app.logger)
	report, err := r.RunCommand(cmd.Context(), t, c)
	if err != nil {
		return fmt.Errorf("command %s on %s: %w", c.ID, t.ID(), err)
	}
	fmt.Fprintf(w, "Command %s finished with %s after %d step(s); %s is %s\n",
		c.ID, report.Last.Transition, report.Steps, t.ID(), report.Status)
	return nil
}

func runListCommands(cmd *cobra.Command, args []string) error {
	commands, err := app.service.ListCommands()
	if err != nil {
		return err
	}
	w := out(cmd)
	if len(commands) == 0 {
		fmt.Fprintln(w, "No stored commands found. Run 'agman init' to create the defaults.")
		return nil
	}

	p := paletteFor(w)
	width := len("COMMAND")
	for _, c := range commands {
		width = max(width, len(c.ID))
	}
	fmt.Fprintln(w, p.header(fmt.Sprintf("%-*s  %s", width, "COMMAND", "DESCRIPTION")))
	for _, c := range commands {
		arg := ""
		if c.RequiresBranch() {
			arg = p.muted(" (--branch)")
		}
		fmt.Fprintf(w, "%-*s  %s%s\n", width, c.ID, c.Description, arg)
	}
	return nil
}
