package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
	if filepath.Base(cfg.BaseDir) != ".agman" {
		t.Errorf("BaseDir = %q, want a .agman directory", cfg.BaseDir)
	}
	if filepath.Base(cfg.ReposDir) != "repos" {
		t.Errorf("ReposDir = %q, want a repos directory", cfg.ReposDir)
	}
	if cfg.Agent.Command != "claude" {
		t.Errorf("Agent.Command = %q, want %q", cfg.Agent.Command, "claude")
	}
	if !slices.Equal(cfg.Agent.Args, []string{"-p", "--dangerously-skip-permissions"}) {
		t.Errorf("Agent.Args = %v", cfg.Agent.Args)
	}
	if cfg.Flow.Multi != "new-multi" {
		t.Errorf("Flow.Multi = %q, want %q", cfg.Flow.Multi, "new-multi")
	}
	if cfg.Prompt.MaxDiffChars != 10000 {
		t.Errorf("Prompt.MaxDiffChars = %d, want 10000", cfg.Prompt.MaxDiffChars)
	}
}

func TestLoad_WithoutConfigFile(t *testing.T) {
	base := t.TempDir()

	cfg, err := Load(NewViper(base))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseDir != base {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, base)
	}
	if cfg.Tmux.DispatchWindow != "agman" {
		t.Errorf("Tmux.DispatchWindow = %q, want %q", cfg.Tmux.DispatchWindow, "agman")
	}
}

func TestLoad_ReadsConfigTOML(t *testing.T) {
	base := t.TempDir()
	content := `repos_dir = "/srv/code"
log_level = "debug"

[agent]
command = "fake-agent"

[prompt]
log_commits = 5
`
	if err := os.WriteFile(filepath.Join(base, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(NewViper(base))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ReposDir != "/srv/code" {
		t.Errorf("ReposDir = %q, want %q", cfg.ReposDir, "/srv/code")
	}
	if cfg.Agent.Command != "fake-agent" {
		t.Errorf("Agent.Command = %q, want %q", cfg.Agent.Command, "fake-agent")
	}
	if cfg.Prompt.LogCommits != 5 {
		t.Errorf("Prompt.LogCommits = %d, want 5", cfg.Prompt.LogCommits)
	}
	// Untouched keys keep their defaults
	if cfg.Prompt.MaxDiffChars != 10000 {
		t.Errorf("Prompt.MaxDiffChars = %d, want 10000", cfg.Prompt.MaxDiffChars)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AGMAN_REPOS_DIR", "/from/env")

	cfg, err := Load(NewViper(base))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ReposDir != "/from/env" {
		t.Errorf("ReposDir = %q, want %q", cfg.ReposDir, "/from/env")
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	base := t.TempDir()
	content := "[prompt]\nmax_diff_chars = -1\n"
	if err := os.WriteFile(filepath.Join(base, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(NewViper(base))
	if err == nil {
		t.Fatal("Load() should fail validation")
	}
	if _, ok := err.(ValidationErrors); !ok {
		t.Errorf("Load() error type = %T, want ValidationErrors", err)
	}
}

func TestTaskID(t *testing.T) {
	tests := []struct {
		name   string
		branch string
		want   string
	}{
		{"app", "feat", "app--feat"},
		{"repos", "feat", "repos--feat"},
		{"app", "feature/login", "app--feature-login"},
		{"app", "a/b/c", "app--a-b-c"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := TaskID(tt.name, tt.branch); got != tt.want {
				t.Errorf("TaskID(%q, %q) = %q, want %q", tt.name, tt.branch, got, tt.want)
			}
		})
	}
}

func TestParseTaskID(t *testing.T) {
	tests := []struct {
		id         string
		wantName   string
		wantBranch string
		wantOK     bool
	}{
		{"app--feat", "app", "feat", true},
		{"app--feat--two", "app", "feat--two", true},
		{"feat", "", "", false},
		{"--feat", "", "", false},
		{"app--", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			name, branch, ok := ParseTaskID(tt.id)
			if name != tt.wantName || branch != tt.wantBranch || ok != tt.wantOK {
				t.Errorf("ParseTaskID(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.id, name, branch, ok, tt.wantName, tt.wantBranch, tt.wantOK)
			}
		})
	}
}

func TestSessionName(t *testing.T) {
	tests := []struct {
		repo   string
		branch string
		want   string
	}{
		{"svcA", "feat/x", "(svcA)__feat-x"},
		{"app", "v1.2", "(app)__v1_2"},
		{"app", "release/2.0:rc", "(app)__release-2_0_rc"},
		{"web.ui", "main", "(web_ui)__main"},
	}

	for _, tt := range tests {
		t.Run(tt.branch, func(t *testing.T) {
			got := SessionName(tt.repo, tt.branch)
			if got != tt.want {
				t.Errorf("SessionName(%q, %q) = %q, want %q", tt.repo, tt.branch, got, tt.want)
			}
			if strings.ContainsAny(got, ".:") {
				t.Errorf("SessionName() = %q contains characters tmux rewrites", got)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{BaseDir: "/base", ReposDir: "/code"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"tasks", cfg.TasksDir(), "/base/tasks"},
		{"task", cfg.TaskDir("app--feat"), "/base/tasks/app--feat"},
		{"flow", cfg.FlowPath("new"), "/base/flows/new.yaml"},
		{"prompt", cfg.PromptPath("coder"), "/base/prompts/coder.md"},
		{"command", cfg.CommandPath("rebase"), "/base/commands/rebase.yaml"},
		{"repo", cfg.RepoPath("app"), "/code/app"},
		{"worktree", WorktreePath(cfg.ReposDir, "app", "feat/x"), "/code/app-wt/feat-x"},
		{"config", cfg.ConfigFile(), "/base/config.toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestInitDefaultFiles(t *testing.T) {
	cfg := &Config{BaseDir: t.TempDir()}

	if err := InitDefaultFiles(cfg, false); err != nil {
		t.Fatalf("InitDefaultFiles() error = %v", err)
	}
	for name := range DefaultFlows {
		if _, err := os.Stat(cfg.FlowPath(name)); err != nil {
			t.Errorf("flow %q not written: %v", name, err)
		}
	}
	for agent := range DefaultPrompts {
		if _, err := os.Stat(cfg.PromptPath(agent)); err != nil {
			t.Errorf("prompt %q not written: %v", agent, err)
		}
	}
	for id := range DefaultCommands {
		if _, err := os.Stat(cfg.CommandPath(id)); err != nil {
			t.Errorf("command %q not written: %v", id, err)
		}
	}

	// User edits survive a second non-forced init
	custom := []byte("custom coder prompt")
	if err := os.WriteFile(cfg.PromptPath("coder"), custom, 0644); err != nil {
		t.Fatal(err)
	}
	if err := InitDefaultFiles(cfg, false); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(cfg.PromptPath("coder"))
	if string(got) != string(custom) {
		t.Errorf("non-forced init overwrote prompt: %q", got)
	}

	if err := InitDefaultFiles(cfg, true); err != nil {
		t.Fatal(err)
	}
	got, _ = os.ReadFile(cfg.PromptPath("coder"))
	if string(got) != DefaultPrompts["coder"] {
		t.Error("forced init should restore the default prompt")
	}
}
