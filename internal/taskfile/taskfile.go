// Package taskfile reads the sections of TASK.md that the orchestrator
// depends on. Every function here is pure: callers read the file fresh
// and pass its text in, since agents rewrite it between steps.
package taskfile

import (
	"strings"
)

// Section headings with machine meaning.
const (
	GoalHeading  = "Goal"
	PlanHeading  = "Plan"
	ReposHeading = "Repos"
)

// heading returns the title of a level-1 markdown heading, or "" when
// line is not one.
func heading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "# ") && trimmed != "#" {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, "#")), true
}

// isHeading reports whether line starts any markdown heading.
func isHeading(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// Section returns the body of the level-1 section titled name, without
// the heading line and trimmed of surrounding blank lines. Subheadings
// (##) belong to the section. The match on name ignores case.
func Section(text, name string) (string, bool) {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if title, ok := heading(line); ok && strings.EqualFold(title, name) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "", false
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		if _, ok := heading(lines[i]); ok {
			end = i
			break
		}
	}
	return strings.Trim(strings.Join(lines[start:end], "\n"), "\n"), true
}

// Goal returns the # Goal section.
func Goal(text string) string {
	s, _ := Section(text, GoalHeading)
	return s
}

// Plan returns the # Plan section, including its subsections.
func Plan(text string) string {
	s, _ := Section(text, PlanHeading)
	return s
}

// ParseRepos extracts repository names from the # Repos section.
//
// The section is a heading followed by bullets of the form
// "- <repo-name>: <rationale>"; the rationale is optional. The section
// ends at the next heading of any level. A missing section yields an
// empty list. Names are returned in document order without duplicates.
func ParseRepos(text string) []string {
	repos := []string{}
	seen := make(map[string]bool)
	inSection := false

	for _, line := range strings.Split(text, "\n") {
		if inSection && isHeading(line) {
			break
		}
		if title, ok := heading(line); ok {
			inSection = strings.EqualFold(title, ReposHeading)
			continue
		}
		if !inSection {
			continue
		}

		name, ok := bulletName(line)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		repos = append(repos, name)
	}
	return repos
}

// bulletName returns the repository name of a "- name: rationale" bullet.
func bulletName(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	var rest string
	switch {
	case strings.HasPrefix(trimmed, "- "):
		rest = trimmed[2:]
	case strings.HasPrefix(trimmed, "* "):
		rest = trimmed[2:]
	default:
		return "", false
	}

	name, _, _ := strings.Cut(rest, ":")
	name = strings.Trim(strings.TrimSpace(name), "`*")
	if name == "" {
		return "", false
	}
	return name, true
}
