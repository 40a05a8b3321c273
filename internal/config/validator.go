package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "prompt.max_diff_chars")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateAgent()...)
	errors = append(errors, c.validateTmux()...)
	errors = append(errors, c.validateFlow()...)
	errors = append(errors, c.validatePrompt()...)

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.LogLevel)) {
		errors = append(errors, ValidationError{
			Field:   "log_level",
			Value:   c.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	for field, path := range map[string]string{"base_dir": c.BaseDir, "repos_dir": c.ReposDir} {
		if path == "" {
			errors = append(errors, ValidationError{Field: field, Value: path, Message: "must not be empty"})
			continue
		}
		// Null bytes are invalid in paths
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{Field: field, Value: path, Message: "contains invalid null character"})
		}
	}

	// Map iteration order is random; keep the report stable.
	slices.SortFunc(errors, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })
	return errors
}

func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Agent.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "agent.command",
			Value:   c.Agent.Command,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateTmux() []ValidationError {
	var errors []ValidationError

	if len(c.Tmux.Windows) == 0 {
		errors = append(errors, ValidationError{
			Field:   "tmux.windows",
			Value:   c.Tmux.Windows,
			Message: "must name at least one window",
		})
	}
	for i, w := range c.Tmux.Windows {
		if strings.TrimSpace(w) == "" || strings.ContainsAny(w, ":.") {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("tmux.windows[%d]", i),
				Value:   w,
				Message: "window names must be non-empty and cannot contain ':' or '.'",
			})
		}
	}
	if c.Tmux.DispatchWindow != "" && !slices.Contains(c.Tmux.Windows, c.Tmux.DispatchWindow) {
		errors = append(errors, ValidationError{
			Field:   "tmux.dispatch_window",
			Value:   c.Tmux.DispatchWindow,
			Message: "must be one of tmux.windows",
		})
	}

	return errors
}

func (c *Config) validateFlow() []ValidationError {
	var errors []ValidationError

	for field, name := range map[string]string{
		"flow.default":  c.Flow.Default,
		"flow.multi":    c.Flow.Multi,
		"flow.continue": c.Flow.Continue,
	} {
		if name == "" || strings.ContainsAny(name, `/\`) {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   name,
				Message: "must be a non-empty flow name without path separators",
			})
		}
	}

	slices.SortFunc(errors, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })

	if c.Flow.MaxLoopIterations <= 0 {
		errors = append(errors, ValidationError{
			Field:   "flow.max_loop_iterations",
			Value:   c.Flow.MaxLoopIterations,
			Message: "must be positive",
		})
	}
	return errors
}

func (c *Config) validatePrompt() []ValidationError {
	var errors []ValidationError

	if c.Prompt.MaxDiffChars <= 0 {
		errors = append(errors, ValidationError{
			Field:   "prompt.max_diff_chars",
			Value:   c.Prompt.MaxDiffChars,
			Message: "must be positive",
		})
	}
	if c.Prompt.LogCommits <= 0 {
		errors = append(errors, ValidationError{
			Field:   "prompt.log_commits",
			Value:   c.Prompt.LogCommits,
			Message: "must be positive",
		})
	}

	return errors
}
