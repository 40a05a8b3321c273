package cmd

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default flows and prompts",
	Long: `Create the agman base directory and write the default flows and agent
prompts. Existing files are kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View agman configuration",
	Long: `View agman configuration.

Settings are read from <base-dir>/config.toml and may be overridden with
AGMAN_* environment variables, e.g. AGMAN_AGENT_COMMAND for agent.command.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing flows and prompts")
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := config.InitDefaultFiles(app.cfg, initForce); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	w := out(cmd)
	fmt.Fprintln(w, "agman initialized successfully!")
	fmt.Fprintf(w, "Flows:   %s\n", app.cfg.FlowsDir())
	fmt.Fprintf(w, "Prompts: %s\n", app.cfg.PromptsDir())
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := app.cfg
	w := out(cmd)
	p := paletteFor(w)

	fmt.Fprintln(w, p.header("Current configuration:"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "base_dir  = %s\n", cfg.BaseDir)
	fmt.Fprintf(w, "repos_dir = %s\n", cfg.ReposDir)
	fmt.Fprintf(w, "log_level = %s\n", cfg.LogLevel)

	fmt.Fprintln(w, "\n[agent]")
	fmt.Fprintf(w, "  command = %s\n", cfg.Agent.Command)
	fmt.Fprintf(w, "  args    = %s\n", strings.Join(cfg.Agent.Args, " "))
	fmt.Fprintf(w, "  refiner = %s\n", cfg.Agent.Refiner)

	fmt.Fprintln(w, "\n[tmux]")
	fmt.Fprintf(w, "  windows         = %s\n", strings.Join(cfg.Tmux.Windows, ", "))
	fmt.Fprintf(w, "  dispatch_window = %s\n", cfg.Tmux.DispatchWindow)
	socket := cfg.Tmux.Socket
	if socket == "" {
		socket = "(default server)"
	}
	fmt.Fprintf(w, "  socket          = %s\n", socket)

	fmt.Fprintln(w, "\n[flow]")
	fmt.Fprintf(w, "  default       = %s\n", cfg.Flow.Default)
	fmt.Fprintf(w, "  multi         = %s\n", cfg.Flow.Multi)
	fmt.Fprintf(w, "  continue      = %s\n", cfg.Flow.Continue)
	fmt.Fprintf(w, "  auto_continue = %t\n", cfg.Flow.AutoContinue)

	fmt.Fprintln(w, "\n[prompt]")
	fmt.Fprintf(w, "  max_diff_chars = %d\n", cfg.Prompt.MaxDiffChars)
	fmt.Fprintf(w, "  log_commits    = %d\n", cfg.Prompt.LogCommits)

	if used := app.v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "\n%s %s\n", p.muted("Loaded from"), used)
	} else {
		fmt.Fprintf(w, "\n%s\n", p.muted("No config file found, using defaults"))
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(out(cmd), app.cfg.ConfigFile())
	return nil
}
