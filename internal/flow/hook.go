package flow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// HookKind names a side effect that runs after a step is satisfied and
// before the flow moves on. The set is closed; unknown names are rejected
// when the flow is loaded.
type HookKind int

const (
	HookNone HookKind = iota
	// HookSetupRepos provisions a checkout and session for every repository
	// listed under # Repos in TASK.md.
	HookSetupRepos
)

var hookNames = map[HookKind]string{
	HookNone:       "",
	HookSetupRepos: "setup_repos",
}

func (h HookKind) String() string {
	if name, ok := hookNames[h]; ok && name != "" {
		return name
	}
	if h == HookNone {
		return "none"
	}
	return fmt.Sprintf("hook(%d)", int(h))
}

// ParseHookKind converts a post_hook value into a HookKind. The empty
// string is HookNone.
func ParseHookKind(s string) (HookKind, error) {
	for kind, name := range hookNames {
		if name == s {
			return kind, nil
		}
	}
	return HookNone, fmt.Errorf("unknown post hook %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HookKind) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	kind, err := ParseHookKind(raw)
	if err != nil {
		return err
	}
	*h = kind
	return nil
}

// Action is the on_blocked or on_fail policy of a step.
type Action string

const (
	ActionDefault  Action = ""
	ActionPause    Action = "pause"
	ActionContinue Action = "continue"
)

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Action) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch Action(raw) {
	case ActionDefault, ActionPause, ActionContinue:
		*a = Action(raw)
		return nil
	}
	return fmt.Errorf("unknown action %q (want pause or continue)", raw)
}
