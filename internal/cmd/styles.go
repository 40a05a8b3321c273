package cmd

import (
	"io"
	"os"

	"github.com/Iron-Ham/agman/internal/task"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

	statusColors = map[task.Status]lipgloss.Color{
		task.StatusRunning:     lipgloss.Color("#10B981"), // Green
		task.StatusInputNeeded: lipgloss.Color("#F59E0B"), // Amber
		task.StatusStopped:     lipgloss.Color("#9CA3AF"), // Gray
		task.StatusOnHold:      lipgloss.Color("#60A5FA"), // Blue
		task.StatusFailed:      lipgloss.Color("#F87171"), // Red
		task.StatusDone:        lipgloss.Color("#A78BFA"), // Purple
	}
)

// palette renders styled text only when writing to a terminal.
type palette struct {
	color bool
}

func paletteFor(w io.Writer) palette {
	return palette{color: isTerminal(w)}
}

func (p palette) status(s task.Status) string {
	if !p.color {
		return s.String()
	}
	return lipgloss.NewStyle().Bold(true).Foreground(statusColors[s]).Render(s.String())
}

func (p palette) header(s string) string {
	if !p.color {
		return s
	}
	return headerStyle.Render(s)
}

func (p palette) muted(s string) string {
	if !p.color {
		return s
	}
	return mutedStyle.Render(s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or fallback when w is not a terminal.
func terminalWidth(w io.Writer, fallback int) int {
	f, ok := w.(*os.File)
	if !ok {
		return fallback
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}
