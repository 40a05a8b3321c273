// Package prompt assembles the text handed to an agent process.
//
// A prompt is the agent's template followed by the task's goal and plan
// as currently written in TASK.md, the location of the task directory
// and, where it matters, git context gathered from every checkout of the
// task. Multi-repo prompts also list each repository's checkout path,
// since the agent runs in the parent directory rather than a checkout.
package prompt

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/sourcegraph/conc/iter"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/logging"
	"github.com/Iron-Ham/agman/internal/task"
	"github.com/Iron-Ham/agman/internal/taskfile"
	"github.com/Iron-Ham/agman/internal/worktree"
)

// TruncationSuffix marks a diff cut at the configured size.
const TruncationSuffix = "\n... (truncated)\n"

// Assembler builds agent prompts.
type Assembler struct {
	cfg    *config.Config
	git    worktree.DiffProvider
	logger *logging.Logger
}

// New creates an Assembler that reads git context through the git CLI.
func New(cfg *config.Config, logger *logging.Logger) *Assembler {
	return NewWithGit(cfg, worktree.NewInspector(), logger)
}

// NewWithGit creates an Assembler with a custom git context source.
func NewWithGit(cfg *config.Config, git worktree.DiffProvider, logger *logging.Logger) *Assembler {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Assembler{cfg: cfg, git: git, logger: logger}
}

// Template returns the prompt template of agent.
func (a *Assembler) Template(agent string) (string, error) {
	path := a.cfg.PromptPath(agent)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFoundError("prompt", agent).WithCause(errors.ErrPromptNotFound)
		}
		return "", fmt.Errorf("failed to read prompt %s: %w", path, err)
	}
	return string(data), nil
}

// Build assembles the prompt for running agent on t. TASK.md and
// FEEDBACK.md are read fresh on every call.
func (a *Assembler) Build(ctx context.Context, t *task.Task, agent string) (string, error) {
	tmpl, err := a.Template(agent)
	if err != nil {
		return "", err
	}
	text, err := t.ReadTaskFile()
	if err != nil {
		return "", err
	}
	feedback, err := t.ReadFeedback()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(tmpl, "\n"))
	b.WriteString("\n\n---\n\n")

	goal, ok := taskfile.Section(text, taskfile.GoalHeading)
	if !ok {
		goal = strings.TrimSpace(text)
	}
	writeSection(&b, "Task Goal", goal)
	writeSection(&b, "Implementation Plan", taskfile.Plan(text))
	writeSection(&b, "Task Directory", fmt.Sprintf(
		"Task files live in %s. Read and update %s there; it is shared by every agent of this task.",
		t.Dir, task.TaskFileName))

	if t.IsMultiRepo() {
		writeSection(&b, "Repositories", repoList(t))
	}

	feedback = strings.TrimSpace(feedback)
	writeSection(&b, "Follow-up Feedback", feedback)

	if t.IsMultiRepo() || feedback != "" {
		writeSection(&b, "Git Context", a.GitContext(ctx, t))
	}

	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

// GitContext returns the diff and recent commits of every checkout of t,
// each under a "## <repo>" header, in the order of t.Repos. Checkouts that
// do not exist on disk are skipped. The result is empty when no checkout
// has anything to report.
func (a *Assembler) GitContext(ctx context.Context, t *task.Task) string {
	if !t.HasRepos() {
		return ""
	}

	// iter.Map keeps input order, so sections line up with t.Repos
	sections := iter.Map(t.Repos, func(entry *task.RepoEntry) string {
		return a.repoContext(ctx, *entry)
	})

	var parts []string
	for _, s := range sections {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (a *Assembler) repoContext(ctx context.Context, entry task.RepoEntry) string {
	log := a.logger.With("repo", entry.RepoName, "path", entry.WorktreePath)
	if _, err := os.Stat(entry.WorktreePath); err != nil {
		log.Debug("skipping git context for missing checkout")
		return ""
	}

	var b strings.Builder
	diff, err := a.git.Diff(ctx, entry.WorktreePath)
	if err != nil {
		log.Warn("failed to read diff", "error", err)
	}
	if diff = Truncate(diff, a.cfg.Prompt.MaxDiffChars); strings.TrimSpace(diff) != "" {
		b.WriteString("### Diff\n```diff\n")
		b.WriteString(strings.TrimRight(diff, "\n"))
		b.WriteString("\n```\n")
	}

	commits, err := a.git.Log(ctx, entry.WorktreePath, a.cfg.Prompt.LogCommits)
	if err != nil {
		log.Warn("failed to read commit log", "error", err)
	}
	if strings.TrimSpace(commits) != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("### Recent Commits\n```\n")
		b.WriteString(commits)
		b.WriteString("\n```\n")
	}

	if b.Len() == 0 {
		return ""
	}
	return "## " + entry.RepoName + "\n" + strings.TrimRight(b.String(), "\n")
}

// Truncate cuts s to at most limit bytes on a rune boundary and appends
// TruncationSuffix when anything was dropped. A non-positive limit
// disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncationSuffix
}

func repoList(t *task.Task) string {
	if !t.HasRepos() {
		return fmt.Sprintf("No repositories are set up yet. Candidates live under %s.", t.ParentDir)
	}
	lines := make([]string, len(t.Repos))
	for i, entry := range t.Repos {
		lines[i] = fmt.Sprintf("- %s: %s", entry.RepoName, entry.WorktreePath)
	}
	return strings.Join(lines, "\n")
}

func writeSection(b *strings.Builder, title, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	fmt.Fprintf(b, "# %s\n%s\n\n", title, body)
}
