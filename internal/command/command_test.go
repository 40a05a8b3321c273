package command

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDir = t.TempDir()
	if err := config.InitDefaultFiles(cfg, false); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestParse(t *testing.T) {
	data := []byte(`name: Rebase
id: rebase
description: Rebase the branch
requires_arg: branch
steps:
  - agent: rebase-executor
    until: AGENT_DONE
`)

	c, err := Parse(data, "/base/commands/rebase.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.ID != "rebase" || c.Name != "Rebase" || c.Description != "Rebase the branch" {
		t.Errorf("command = %+v", c)
	}
	if !c.RequiresBranch() {
		t.Error("RequiresBranch() = false, want true")
	}
	if c.Flow.Len() != 1 {
		t.Fatalf("Flow.Len() = %d, want 1", c.Flow.Len())
	}
	if step, _ := c.Flow.Step(0); step.Agent != "rebase-executor" {
		t.Errorf("step 0 agent = %q", step.Agent)
	}
}

func TestParse_IDDefaultsToFileName(t *testing.T) {
	data := []byte("name: Tidy\nsteps:\n  - agent: coder\n    until: AGENT_DONE\n")

	c, err := Parse(data, "tidy.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.ID != "tidy" || c.RequiresBranch() {
		t.Errorf("command = %+v", c)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no steps", "name: Empty\nid: empty\n"},
		{"id mismatch", "name: X\nid: other\nsteps:\n  - agent: coder\n    until: AGENT_DONE\n"},
		{"unknown argument", "name: X\nid: empty\nrequires_arg: pr\nsteps:\n  - agent: coder\n    until: AGENT_DONE\n"},
		{"bad step", "name: X\nid: empty\nsteps:\n  - agent: coder\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), "empty.yaml")
			var parseErr *errors.ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("Parse() error = %v, want ParseError", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	cfg := testConfig(t)

	for id := range config.DefaultCommands {
		t.Run(id, func(t *testing.T) {
			c, err := Load(cfg, id)
			if err != nil {
				t.Fatalf("Load(%q) error = %v", id, err)
			}
			for _, step := range c.Flow.Steps {
				if _, ok := config.DefaultPrompts[step.Agent]; !ok {
					t.Errorf("agent %q has no default prompt", step.Agent)
				}
			}
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := Load(cfg, "nope")
		if !errors.Is(err, errors.ErrCommandNotFound) {
			t.Errorf("Load(nope) error = %v, want ErrCommandNotFound", err)
		}
	})

	t.Run("path traversal", func(t *testing.T) {
		_, err := Load(cfg, "../flows/new")
		if !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Load(../flows/new) error = %v, want validation error", err)
		}
	})
}

func TestList(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.CommandsDir(), "broken.yaml"), []byte("name: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.CommandsDir(), "README.md"), []byte("notes"), 0644); err != nil {
		t.Fatal(err)
	}

	commands, err := List(cfg, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	var names []string
	for _, c := range commands {
		names = append(names, c.Name)
	}
	want := []string{"Address Review", "Create Draft PR", "Rebase"}
	if len(names) != len(want) {
		t.Fatalf("List() names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestList_MissingDir(t *testing.T) {
	cfg := config.Default()
	cfg.BaseDir = t.TempDir()

	commands, err := List(cfg, nil)
	if err != nil || len(commands) != 0 {
		t.Errorf("List() = %v, %v; want empty", commands, err)
	}
}
