// Package tmux drives the tmux sessions agman opens for each checkout.
//
// A task owns one session per repository, named (<repo>)__<branch>, plus
// a parent session for multi-repo tasks. Sessions live on the default
// tmux server unless a socket name is configured, in which case every
// command runs with -L <socket>.
package tmux

import (
	"context"
	"os/exec"
)

// CommandArgs returns tmux arguments, prefixed with -L socket when a
// socket is set.
func CommandArgs(socket string, args ...string) []string {
	if socket == "" {
		return append([]string{}, args...)
	}
	return append([]string{"-L", socket}, args...)
}

// CommandContext creates a context-aware exec.Cmd for tmux.
func CommandContext(ctx context.Context, socket string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "tmux", CommandArgs(socket, args...)...)
}

// Command creates an exec.Cmd for tmux. Use it for interactive commands
// such as attach-session that must outlive any context.
func Command(socket string, args ...string) *exec.Cmd {
	return exec.Command("tmux", CommandArgs(socket, args...)...)
}

// Runner executes one tmux command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// CLIRunner runs tmux through os/exec.
type CLIRunner struct {
	Socket string
}

// Run executes tmux with args.
func (r CLIRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	return CommandContext(ctx, r.Socket, args...).CombinedOutput()
}
