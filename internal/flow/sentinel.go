package flow

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel is a token an agent prints to report how its step ended.
type Sentinel string

// Recognized sentinels. Matching is exact and case-sensitive.
const (
	SentinelNone         Sentinel = ""
	SentinelAgentDone    Sentinel = "AGENT_DONE"
	SentinelTaskComplete Sentinel = "TASK_COMPLETE"
	SentinelTaskBlocked  Sentinel = "TASK_BLOCKED"
	SentinelTestsPass    Sentinel = "TESTS_PASS"
	SentinelTestsFail    Sentinel = "TESTS_FAIL"
	SentinelInputNeeded  Sentinel = "INPUT_NEEDED"
)

// Sentinels lists every recognized sentinel.
func Sentinels() []Sentinel {
	return []Sentinel{
		SentinelAgentDone,
		SentinelTaskComplete,
		SentinelTaskBlocked,
		SentinelTestsPass,
		SentinelTestsFail,
		SentinelInputNeeded,
	}
}

// String returns the token, or "no signal" for SentinelNone.
func (s Sentinel) String() string {
	if s == SentinelNone {
		return "no signal"
	}
	return string(s)
}

// ParseSentinel converts a token into a Sentinel.
func ParseSentinel(s string) (Sentinel, error) {
	for _, known := range Sentinels() {
		if string(known) == s {
			return known, nil
		}
	}
	return SentinelNone, fmt.Errorf("unknown sentinel %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Sentinel) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseSentinel(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DetectSentinel returns the last sentinel occurring in line.
func DetectSentinel(line string) Sentinel {
	found := SentinelNone
	pos := -1
	for _, s := range Sentinels() {
		if i := strings.LastIndex(line, string(s)); i > pos {
			found, pos = s, i
		}
	}
	return found
}

// LastSentinel scans output line by line and returns the last sentinel
// printed. Agents restate instructions before answering, so the final
// token is the one that counts.
func LastSentinel(output string) Sentinel {
	found := SentinelNone
	for _, line := range strings.Split(output, "\n") {
		if s := DetectSentinel(line); s != SentinelNone {
			found = s
		}
	}
	return found
}
