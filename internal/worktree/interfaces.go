package worktree

import "context"

// CheckoutManager creates and removes the worktrees of one repository.
type CheckoutManager interface {
	// Checkout creates a worktree for branch at path, creating the branch
	// from HEAD when it does not exist yet.
	Checkout(ctx context.Context, path, branch string) error

	// Exists reports whether path is a live worktree of the repository.
	Exists(ctx context.Context, path string) bool

	// Remove removes the worktree at path.
	Remove(ctx context.Context, path string) error

	// DeleteBranch force-deletes a local branch.
	DeleteBranch(ctx context.Context, branch string) error
}

// DiffProvider reads the state of a checkout for prompt context.
type DiffProvider interface {
	// Diff returns changes against HEAD.
	Diff(ctx context.Context, path string) (string, error)

	// Log returns the last n commits in oneline format.
	Log(ctx context.Context, path string, n int) (string, error)
}

// Ensure the concrete types implement the interfaces at compile time.
var (
	_ CheckoutManager = (*Manager)(nil)
	_ DiffProvider    = (*Inspector)(nil)
)
