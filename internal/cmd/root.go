package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/logging"
	"github.com/Iron-Ham/agman/internal/task"
	"github.com/Iron-Ham/agman/internal/usecase"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "agman",
	Short: "Agent task manager",
	Long: `agman drives AI coding agents through declarative multi-step flows.

Every task gets its own git worktree and tmux session per repository it
touches. A flow-run executes the task's flow one agent step at a time,
classifies the agent's output and advances, loops, pauses or completes
the task accordingly.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupApp,
}

var baseDir string

// appContext holds what every command needs once configuration is loaded.
type appContext struct {
	cfg     *config.Config
	v       *viper.Viper
	logger  *logging.Logger
	store   *task.Store
	service *usecase.Service
}

// app is set by setupApp before any command runs.
var app *appContext

// shutdownSignals cancel the command context. SIGHUP arrives when the tmux
// session a dispatched flow-run lives in is killed; the run must then be
// recorded as stopped and its agent terminated.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

// signalContext returns a context cancelled by any of shutdownSignals.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}

// Execute runs the root command and reports its error on stderr.
func Execute() error {
	ctx, stop := signalContext(context.Background())
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		reportError(os.Stderr, err)
	}
	if app != nil {
		_ = app.logger.Close()
	}
	return err
}

// reportError prints err for the user and records it in agman.log.
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if errors.IsRetryable(err) {
		fmt.Fprintln(w, "The operation is safe to retry.")
	}
	if !errors.IsUserFacing(err) {
		fmt.Fprintln(w, "Details are in agman.log (agman logs --system --level error).")
	}
	if app == nil {
		return
	}
	if errors.GetSeverity(err) == errors.SeverityWarning {
		app.logger.Warn("command failed", "error", err.Error())
	} else {
		app.logger.Error("command failed", "error", err.Error())
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "agman base directory (default is ~/.agman, env AGMAN_BASE_DIR)")
}

func setupApp(cmd *cobra.Command, args []string) error {
	v := config.NewViper(baseDir)
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create %s: %w", cfg.BaseDir, err)
	}

	logger, err := logging.NewLogger(cfg.LogDir(), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}

	store := task.NewStore(cfg, logger)
	app = &appContext{
		cfg:     cfg,
		v:       v,
		logger:  logger,
		store:   store,
		service: usecase.New(cfg, store, logger),
	}
	return nil
}

// resolveTask loads a task by ID or unambiguous branch name.
func resolveTask(ref string) (*task.Task, error) {
	return app.store.Resolve(ref)
}

// out returns the command's stdout, which tests redirect.
func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
