package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. AGMAN_REPOS_DIR for repos_dir.
const EnvPrefix = "AGMAN"

// Config represents the complete agman configuration. A single value is
// built at startup and passed to every component that needs paths or
// settings; nothing reads configuration from package state.
type Config struct {
	// BaseDir holds tasks/, flows/, commands/, prompts/ and config.toml (default: ~/.agman)
	BaseDir string `mapstructure:"base_dir"`
	// ReposDir is where single-repo tasks find their repositories (default: ~/repos)
	ReposDir string `mapstructure:"repos_dir"`
	// LogLevel is the minimum level written to agman.log
	LogLevel string `mapstructure:"log_level"`

	Agent  AgentConfig  `mapstructure:"agent"`
	Tmux   TmuxConfig   `mapstructure:"tmux"`
	Flow   FlowConfig   `mapstructure:"flow"`
	Prompt PromptConfig `mapstructure:"prompt"`
}

// AgentConfig controls how the agent process is invoked
type AgentConfig struct {
	// Command is the executable started for every agent step
	Command string `mapstructure:"command"`
	// Args are passed before the prompt, which is written to stdin
	Args []string `mapstructure:"args"`
	// Refiner names the agent whose run consumes FEEDBACK.md
	Refiner string `mapstructure:"refiner"`
}

// TmuxConfig controls the per-repository terminal sessions
type TmuxConfig struct {
	// Windows is the window layout created for every new session. The first
	// window is selected after creation.
	Windows []string `mapstructure:"windows"`
	// DispatchWindow is the window flow-run commands are sent to
	DispatchWindow string `mapstructure:"dispatch_window"`
	// Socket selects a dedicated tmux server via -L (empty uses the default server)
	Socket string `mapstructure:"socket"`
}

// FlowConfig names the flows used by the task lifecycle commands
type FlowConfig struct {
	Default  string `mapstructure:"default"`
	Multi    string `mapstructure:"multi"`
	Continue string `mapstructure:"continue"`
	// AutoContinue pops queued feedback and runs the continue flow when a
	// flow-run finishes with the task done.
	AutoContinue bool `mapstructure:"auto_continue"`
	// MaxLoopIterations caps how many times one flow-run starts a loop
	// body before the task is put on hold.
	MaxLoopIterations int `mapstructure:"max_loop_iterations"`
}

// PromptConfig bounds the git context embedded into agent prompts
type PromptConfig struct {
	MaxDiffChars int `mapstructure:"max_diff_chars"`
	LogCommits   int `mapstructure:"log_commits"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		BaseDir:  filepath.Join(home, ".agman"),
		ReposDir: filepath.Join(home, "repos"),
		LogLevel: "info",
		Agent: AgentConfig{
			Command: "claude",
			Args:    []string{"-p", "--dangerously-skip-permissions"},
			Refiner: "refiner",
		},
		Tmux: TmuxConfig{
			Windows:        []string{"nvim", "lazygit", "claude", "shell", "agman"},
			DispatchWindow: "agman",
		},
		Flow: FlowConfig{
			Default:           "new",
			Multi:             "new-multi",
			Continue:          "continue",
			AutoContinue:      true,
			MaxLoopIterations: 100,
		},
		Prompt: PromptConfig{
			MaxDiffChars: 10000,
			LogCommits:   20,
		},
	}
}

// SetDefaults registers default values on v so they are available even
// without a config file.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("base_dir", defaults.BaseDir)
	v.SetDefault("repos_dir", defaults.ReposDir)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetDefault("agent.command", defaults.Agent.Command)
	v.SetDefault("agent.args", defaults.Agent.Args)
	v.SetDefault("agent.refiner", defaults.Agent.Refiner)

	v.SetDefault("tmux.windows", defaults.Tmux.Windows)
	v.SetDefault("tmux.dispatch_window", defaults.Tmux.DispatchWindow)
	v.SetDefault("tmux.socket", defaults.Tmux.Socket)

	v.SetDefault("flow.default", defaults.Flow.Default)
	v.SetDefault("flow.multi", defaults.Flow.Multi)
	v.SetDefault("flow.continue", defaults.Flow.Continue)
	v.SetDefault("flow.auto_continue", defaults.Flow.AutoContinue)
	v.SetDefault("flow.max_loop_iterations", defaults.Flow.MaxLoopIterations)

	v.SetDefault("prompt.max_diff_chars", defaults.Prompt.MaxDiffChars)
	v.SetDefault("prompt.log_commits", defaults.Prompt.LogCommits)
}

// NewViper returns a viper instance wired for agman: defaults registered,
// AGMAN_* environment overrides enabled and config.toml looked up in baseDir.
func NewViper(baseDir string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	if baseDir != "" {
		v.Set("base_dir", baseDir)
	}

	v.SetEnvPrefix(EnvPrefix)
	// e.g. AGMAN_AGENT_COMMAND for agent.command
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(v.GetString("base_dir"))
	return v
}

// Load reads config.toml (if present) into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.BaseDir = expandHome(cfg.BaseDir)
	cfg.ReposDir = expandHome(cfg.ReposDir)

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ConfigFile returns the path of config.toml for this configuration
func (c *Config) ConfigFile() string {
	return filepath.Join(c.BaseDir, "config.toml")
}

// EnsureDirs creates the base directory layout.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.BaseDir, c.TasksDir(), c.FlowsDir(), c.CommandsDir(), c.PromptsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
