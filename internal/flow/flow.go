// Package flow loads declarative flow definitions and decides how a task
// moves after each agent run.
//
// A flow file is YAML:
//
//	name: new
//	steps:
//	  - agent: planner
//	    until: AGENT_DONE
//	  - loop:
//	      - agent: coder
//	        until: AGENT_DONE
//	      - agent: checker
//	        until: AGENT_DONE
//	    until: TASK_COMPLETE
//
// Loops are flattened at load time so a task's flow_step is a plain index
// into Flow.Steps.
package flow

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/errors"
)

// AgentStep runs one agent until it prints its stop sentinel.
type AgentStep struct {
	Agent     string   `yaml:"agent"`
	Until     Sentinel `yaml:"until"`
	OnBlocked Action   `yaml:"on_blocked,omitempty"`
	OnFail    Action   `yaml:"on_fail,omitempty"`
	PostHook  HookKind `yaml:"post_hook,omitempty"`
}

// Loop is the flattened position of a loop block.
type Loop struct {
	Start int
	End   int
	Until Sentinel
}

// Step is one entry of the flattened step sequence.
type Step struct {
	AgentStep
	Index int
	// Loop is set for steps inside a loop body.
	Loop *Loop
}

// InLoop reports whether the step belongs to a loop body.
func (s Step) InLoop() bool { return s.Loop != nil }

// IsLoopTail reports whether the step is the last one of its loop body,
// where the loop's own until condition is evaluated.
func (s Step) IsLoopTail() bool { return s.Loop != nil && s.Index == s.Loop.End }

// Flow is a parsed, flattened flow definition.
type Flow struct {
	Name  string
	Steps []Step
}

// Len returns the number of flattened steps.
func (f *Flow) Len() int { return len(f.Steps) }

// Step returns the step at index i.
func (f *Flow) Step(i int) (Step, bool) {
	if i < 0 || i >= len(f.Steps) {
		return Step{}, false
	}
	return f.Steps[i], true
}

// ValidIndex reports whether i addresses a step.
func (f *Flow) ValidIndex(i int) bool {
	return i >= 0 && i < len(f.Steps)
}

type document struct {
	Name  string    `yaml:"name"`
	Steps yaml.Node `yaml:"steps"`
}

type element struct {
	AgentStep `yaml:",inline"`
	Loop      []yaml.Node `yaml:"loop"`
}

// Parse decodes and flattens a flow definition. Any structural problem
// fails the whole parse with a ParseError naming source and line; a flow
// is never partially loaded.
func Parse(data []byte, source string) (*Flow, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewParseError("flow definition is empty", nil).WithSource(source)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewParseError("invalid flow definition", err).WithSource(source)
	}
	if doc.Name == "" {
		return nil, errors.NewParseError("flow has no name", nil).WithSource(source)
	}
	if doc.Steps.Kind != yaml.SequenceNode || len(doc.Steps.Content) == 0 {
		return nil, errors.NewParseError("flow has no steps", nil).WithSource(source).WithLine(doc.Steps.Line)
	}

	f := &Flow{Name: doc.Name}
	for _, node := range doc.Steps.Content {
		var el element
		if err := node.Decode(&el); err != nil {
			return nil, errors.NewParseError("invalid step", err).WithSource(source).WithLine(node.Line)
		}

		switch {
		case el.Loop != nil && el.Agent != "":
			return nil, errors.NewParseError("step cannot be both an agent and a loop", nil).
				WithSource(source).WithLine(node.Line)
		case el.Loop != nil:
			if err := f.appendLoop(el, node.Line, source); err != nil {
				return nil, err
			}
		default:
			if err := validateAgentStep(el.AgentStep); err != nil {
				return nil, errors.NewParseError(err.Error(), nil).WithSource(source).WithLine(node.Line)
			}
			f.Steps = append(f.Steps, Step{AgentStep: el.AgentStep, Index: len(f.Steps)})
		}
	}
	return f, nil
}

func (f *Flow) appendLoop(el element, line int, source string) error {
	if len(el.Loop) == 0 {
		return errors.NewParseError("loop has no steps", nil).WithSource(source).WithLine(line)
	}
	if el.Until == SentinelNone {
		return errors.NewParseError("loop has no until condition", nil).WithSource(source).WithLine(line)
	}
	if el.OnBlocked != ActionDefault || el.OnFail != ActionDefault || el.PostHook != HookNone {
		return errors.NewParseError("loop accepts only loop and until", nil).WithSource(source).WithLine(line)
	}

	loop := &Loop{Start: len(f.Steps), End: len(f.Steps) + len(el.Loop) - 1, Until: el.Until}
	for _, node := range el.Loop {
		var inner element
		if err := node.Decode(&inner); err != nil {
			return errors.NewParseError("invalid loop step", err).WithSource(source).WithLine(node.Line)
		}
		if inner.Loop != nil {
			return errors.NewParseError("nested loops are not supported", nil).WithSource(source).WithLine(node.Line)
		}
		if err := validateAgentStep(inner.AgentStep); err != nil {
			return errors.NewParseError(err.Error(), nil).WithSource(source).WithLine(node.Line)
		}
		f.Steps = append(f.Steps, Step{AgentStep: inner.AgentStep, Index: len(f.Steps), Loop: loop})
	}
	return nil
}

func validateAgentStep(s AgentStep) error {
	if s.Agent == "" {
		return fmt.Errorf("step needs an agent or a loop")
	}
	if s.Until == SentinelNone {
		return fmt.Errorf("step %q has no until condition", s.Agent)
	}
	return nil
}

// Load reads <flows>/<name>.yaml.
func Load(cfg *config.Config, name string) (*Flow, error) {
	path := cfg.FlowPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("flow", name).WithCause(errors.ErrFlowNotFound)
		}
		return nil, fmt.Errorf("failed to read flow %s: %w", name, err)
	}
	return Parse(data, path)
}
