package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// TaskIDSeparator joins a task's name and sanitized branch into its ID.
const TaskIDSeparator = "--"

// SanitizeBranch replaces "/" with "-" so task directories and checkout
// paths stay flat. The real branch name is kept in the task record.
func SanitizeBranch(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}

// TaskID returns the identity of a task: <name>--<sanitized branch>.
func TaskID(name, branch string) string {
	return name + TaskIDSeparator + SanitizeBranch(branch)
}

// ParseTaskID splits a task ID on the first separator. ok is false when
// the ID has no separator or either half is empty.
func ParseTaskID(id string) (name, branch string, ok bool) {
	name, branch, ok = strings.Cut(id, TaskIDSeparator)
	if !ok || name == "" || branch == "" {
		return "", "", false
	}
	return name, branch, true
}

// sessionNameReplacer maps the characters tmux rewrites in session names
// ('.' and ':' are target separators) to the '_' tmux itself would use,
// so the name agman stores is the name tmux reports.
var sessionNameReplacer = strings.NewReplacer(".", "_", ":", "_")

// SessionName returns the tmux session name for a repository checkout,
// following the (<repo>)__<branch> convention.
func SessionName(repo, branch string) string {
	return sessionNameReplacer.Replace(fmt.Sprintf("(%s)__%s", repo, SanitizeBranch(branch)))
}

// TasksDir returns <base>/tasks.
func (c *Config) TasksDir() string {
	return filepath.Join(c.BaseDir, "tasks")
}

// FlowsDir returns <base>/flows.
func (c *Config) FlowsDir() string {
	return filepath.Join(c.BaseDir, "flows")
}

// PromptsDir returns <base>/prompts.
func (c *Config) PromptsDir() string {
	return filepath.Join(c.BaseDir, "prompts")
}

// CommandsDir returns <base>/commands.
func (c *Config) CommandsDir() string {
	return filepath.Join(c.BaseDir, "commands")
}

// CommandPath returns the definition file for a stored command.
func (c *Config) CommandPath(id string) string {
	return filepath.Join(c.CommandsDir(), id+".yaml")
}

// LogDir is where agman.log is written.
func (c *Config) LogDir() string {
	return c.BaseDir
}

// TaskDir returns the directory owned by a single task.
func (c *Config) TaskDir(taskID string) string {
	return filepath.Join(c.TasksDir(), taskID)
}

// FlowPath returns the definition file for a named flow.
func (c *Config) FlowPath(name string) string {
	return filepath.Join(c.FlowsDir(), name+".yaml")
}

// PromptPath returns the prompt template for a named agent.
func (c *Config) PromptPath(agent string) string {
	return filepath.Join(c.PromptsDir(), agent+".md")
}

// RepoPath returns the main checkout of a repository under repos_dir.
func (c *Config) RepoPath(repo string) string {
	return filepath.Join(c.ReposDir, repo)
}

// WorktreePath returns where the isolated checkout of repo on branch lives.
// root is the directory that contains the repository: repos_dir for
// single-repo tasks, the task's parent directory for multi-repo tasks.
func WorktreePath(root, repo, branch string) string {
	return filepath.Join(root, repo+"-wt", SanitizeBranch(branch))
}
