// Package command loads stored commands: named flows such as create-pr or
// rebase that run on any task without replacing the task's own flow.
//
// A command file lives at <base>/commands/<id>.yaml and is a flow
// definition with a few extra keys:
//
//	name: Rebase
//	id: rebase
//	description: Rebase the branch onto another branch
//	requires_arg: branch
//	steps:
//	  - agent: rebase-executor
//	    until: AGENT_DONE
package command

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
	"github.com/Iron-Ham/agman/internal/flow"
	"github.com/Iron-Ham/agman/internal/logging"
)

// ArgBranch is the only argument kind a command can require. Its value is
// written to .rebase-target in the task directory before the command runs.
const ArgBranch = "branch"

// Command is a parsed stored command.
type Command struct {
	ID          string
	Name        string
	Description string
	// RequiresArg is empty or ArgBranch.
	RequiresArg string
	Flow        *flow.Flow
	Path        string
}

// RequiresBranch reports whether the command needs a branch argument.
func (c *Command) RequiresBranch() bool { return c.RequiresArg == ArgBranch }

type header struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	RequiresArg string `yaml:"requires_arg"`
}

// Parse decodes a command file. The steps are parsed and flattened exactly
// like a flow; id defaults to the file name and must match it when set.
func Parse(data []byte, source string) (*Command, error) {
	f, err := flow.Parse(data, source)
	if err != nil {
		return nil, err
	}

	var h header
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, errors.NewParseError("invalid command definition", err).WithSource(source)
	}

	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if h.ID == "" {
		h.ID = stem
	}
	if h.ID != stem {
		return nil, errors.NewParseError("command id "+h.ID+" does not match its file name", nil).WithSource(source)
	}
	if h.RequiresArg != "" && h.RequiresArg != ArgBranch {
		return nil, errors.NewParseError("unsupported requires_arg "+h.RequiresArg, nil).WithSource(source)
	}

	return &Command{
		ID:          h.ID,
		Name:        f.Name,
		Description: h.Description,
		RequiresArg: h.RequiresArg,
		Flow:        f,
		Path:        source,
	}, nil
}

// Load reads the command with the given id.
func Load(cfg *config.Config, id string) (*Command, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return nil, errors.NewValidationError("invalid command id").WithField("command").WithValue(id)
	}
	path := cfg.CommandPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("command", id).WithCause(errors.ErrCommandNotFound)
		}
		return nil, errors.Wrapf(err, "failed to read command %s", id)
	}
	return Parse(data, path)
}

// List returns every loadable command sorted by name. Files that fail to
// parse are logged and skipped so one broken command does not hide the
// others.
func List(cfg *config.Config, logger *logging.Logger) ([]*Command, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	entries, err := os.ReadDir(cfg.CommandsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list commands")
	}

	var commands []*Command
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".yaml")
		c, err := Load(cfg, id)
		if err != nil {
			logger.Warn("failed to load command", "command", id, "error", err.Error())
			continue
		}
		commands = append(commands, c)
	}

	slices.SortFunc(commands, func(a, b *Command) int { return strings.Compare(a.Name, b.Name) })
	return commands, nil
}
