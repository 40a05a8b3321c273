package worktree

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Inspector reads the state of an existing checkout. It needs no
// repository root, only the checkout path.
type Inspector struct {
	executor CommandExecutor
}

// NewInspector creates an Inspector backed by the git CLI.
func NewInspector() *Inspector {
	return &Inspector{executor: NewCLICommandExecutor()}
}

// NewInspectorWithExecutor creates an Inspector with a custom executor.
func NewInspectorWithExecutor(executor CommandExecutor) *Inspector {
	return &Inspector{executor: executor}
}

// Diff returns the uncommitted and staged changes of the checkout against
// HEAD.
func (i *Inspector) Diff(ctx context.Context, path string) (string, error) {
	output, err := i.executor.Run(ctx, path, "git", "diff", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get diff: %w", err)
	}
	return string(output), nil
}

// Log returns the last n commits of the checkout in oneline format.
func (i *Inspector) Log(ctx context.Context, path string, n int) (string, error) {
	output, err := i.executor.Run(ctx, path, "git", "log", "--oneline", "-n", strconv.Itoa(n))
	if err != nil {
		return "", fmt.Errorf("failed to get commit log: %w", err)
	}
	return strings.TrimRight(string(output), "\n"), nil
}
