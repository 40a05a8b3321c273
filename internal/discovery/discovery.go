// Package discovery finds the git repositories under a directory, the
// candidates a multi-repo task can span.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/sourcegraph/conc/iter"
)

// Repo is a repository found under a parent directory.
type Repo struct {
	Name string
	Path string
	// Branch is the checked-out branch, empty on a detached HEAD or an
	// unborn branch.
	Branch string
}

// worktreeSuffix marks the directories agman keeps task checkouts in.
const worktreeSuffix = "-wt"

// ListRepos returns the git repositories directly below dir, sorted by
// name. Hidden directories and agman's <repo>-wt checkout directories are
// skipped. Repositories are opened concurrently.
func ListRepos(ctx context.Context, dir string) ([]Repo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, worktreeSuffix) {
			continue
		}
		candidates = append(candidates, name)
	}

	probed := iter.Map(candidates, func(name *string) *Repo {
		if ctx.Err() != nil {
			return nil
		}
		return probe(filepath.Join(dir, *name), *name)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repos := make([]Repo, 0, len(probed))
	for _, r := range probed {
		if r != nil {
			repos = append(repos, *r)
		}
	}
	return repos, nil
}

// IsRepo reports whether path opens as a git repository.
func IsRepo(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

func probe(path, name string) *Repo {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil
	}

	r := &Repo{Name: name, Path: path}
	head, err := repo.Head()
	if err == nil && head.Name().IsBranch() {
		r.Branch = head.Name().Short()
	}
	return r
}
