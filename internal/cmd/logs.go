package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Iron-Ham/agman/internal/logging"
	"github.com/Iron-Ham/agman/internal/task"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs [task]",
	Short: "View a task's agent log or agman's own log",
	Long: `View the agent.log of a task, or with --system the structured agman.log.

Examples:
  # Show the last 50 lines of a task's agent log
  agman logs app--feature-login

  # Follow a task's agent log while its flow runs
  agman logs feature-login -f

  # Show warnings and errors from the last hour
  agman logs --system --level warn --since 1h

  # Search agman.log for a task
  agman logs --system --grep "app--feature-login"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var (
	logsTail   int
	logsFollow bool
	logsSystem bool
	logsLevel  string
	logsSince  string
	logsGrep   string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().BoolVar(&logsSystem, "system", false, "Show agman.log instead of a task's agent log")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "With --system, filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "With --system, show entries since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "With --system, show entries matching pattern (regex)")
}

// logEntry represents a parsed agman.log line
type logEntry struct {
	Time   time.Time      `json:"time"`
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	TaskID string         `json:"task_id,omitempty"`
	Agent  string         `json:"agent,omitempty"`
	Extra  map[string]any `json:"-"` // Captures additional fields
}

// UnmarshalJSON implements custom unmarshaling to capture extra fields
func (e *logEntry) UnmarshalJSON(data []byte) error {
	type alias logEntry
	aux := &struct{ *alias }{alias: (*alias)(e)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range []string{"time", "level", "msg", "task_id", "agent"} {
		delete(all, known)
	}
	if len(all) > 0 {
		e.Extra = all
	}
	return nil
}

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// logFilter selects agman.log entries.
type logFilter struct {
	minLevel int
	since    time.Time
	grep     *regexp.Regexp
}

func (f logFilter) match(e *logEntry) bool {
	if f.minLevel >= 0 && levelPriority(e.Level) < f.minLevel {
		return false
	}
	if !f.since.IsZero() && e.Time.Before(f.since) {
		return false
	}
	if f.grep != nil {
		text := e.Msg + " " + e.TaskID + " " + e.Agent
		for _, v := range e.Extra {
			text += " " + fmt.Sprintf("%v", v)
		}
		if !f.grep.MatchString(text) {
			return false
		}
	}
	return true
}

// levelColor returns the ANSI color code for a log level
func levelColor(level string) string {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return colorGray
	case logging.LevelInfo:
		return colorBlue
	case logging.LevelWarn:
		return colorYellow
	case logging.LevelError:
		return colorRed
	default:
		return colorReset
	}
}

// levelPriority returns the priority of a log level for filtering
func levelPriority(level string) int {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return 0
	case logging.LevelInfo:
		return 1
	case logging.LevelWarn:
		return 2
	case logging.LevelError:
		return 3
	default:
		return -1
	}
}

// formatLogEntry formats an entry for display, colored when color is set
func formatLogEntry(e *logEntry, color bool) string {
	paint := func(code, s string) string {
		if !color {
			return s
		}
		return code + s + colorReset
	}

	var sb strings.Builder
	sb.WriteString(paint(colorGray, "["+e.Time.Local().Format("15:04:05.000")+"]"))
	sb.WriteString(" ")
	sb.WriteString(paint(levelColor(e.Level), "["+strings.ToUpper(e.Level)+"]"))
	sb.WriteString(" ")
	sb.WriteString(e.Msg)

	if e.TaskID != "" {
		sb.WriteString(" " + paint(colorCyan, "task="+e.TaskID))
	}
	if e.Agent != "" {
		sb.WriteString(" " + paint(colorCyan, "agent="+e.Agent))
	}
	for key, value := range e.Extra {
		sb.WriteString(" " + paint(colorCyan, key+"=") + fmt.Sprintf("%v", value))
	}
	return sb.String()
}

func runLogs(cmd *cobra.Command, args []string) error {
	if logsSystem {
		return runSystemLogs(cmd)
	}
	if len(args) == 0 {
		return fmt.Errorf("a task is required (or use --system)")
	}

	t, err := resolveTask(args[0])
	if err != nil {
		return err
	}
	w := out(cmd)

	content, err := t.ReadAgentLog()
	if err != nil {
		return err
	}
	if content != "" {
		if logsTail > 0 {
			content = task.TailLines(content, logsTail) + "\n"
		}
		fmt.Fprint(w, content)
	} else if !logsFollow {
		fmt.Fprintf(w, "No agent output yet for %s\n", t.ID())
		return nil
	}

	if !logsFollow {
		return nil
	}
	return followFile(cmd.Context(), t.AgentLogPath(), func(line string) {
		fmt.Fprintln(w, line)
	})
}

func runSystemLogs(cmd *cobra.Command) error {
	filter := logFilter{minLevel: -1}
	if logsLevel != "" {
		filter.minLevel = levelPriority(logging.ParseLevel(logsLevel))
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.since = time.Now().Add(-d)
	}
	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return fmt.Errorf("invalid grep pattern: %w", err)
		}
		filter.grep = re
	}

	w := out(cmd)
	color := isTerminal(w)
	logPath := filepath.Join(app.cfg.LogDir(), logging.FileName)
	render := func(line string) (string, bool) {
		var entry logEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// Not JSON, show it raw
			return line, true
		}
		if !filter.match(&entry) {
			return "", false
		}
		return formatLogEntry(&entry, color), true
	}

	entries, err := readLogEntries(logPath, render)
	if err != nil {
		return err
	}
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}
	for _, e := range entries {
		fmt.Fprintln(w, e)
	}
	if len(entries) == 0 && !logsFollow {
		fmt.Fprintln(w, "No matching log entries found.")
	}

	if !logsFollow {
		return nil
	}
	return followFile(cmd.Context(), logPath, func(line string) {
		if s, ok := render(line); ok {
			fmt.Fprintln(w, s)
		}
	})
}

// readLogEntries renders every line of path that render accepts. A
// missing file has no entries.
func readLogEntries(path string, render func(string) (string, bool)) ([]string, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var entries []string
	scanner := bufio.NewScanner(file)
	// Increase buffer size for potentially long log lines
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if s, ok := render(line); ok {
			entries = append(entries, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}
	return entries, nil
}

// followFile calls emit with every complete line appended to path until
// ctx is done or the file is removed. The file is created if missing so
// a task can be followed before its first agent runs.
func followFile(ctx context.Context, path string, emit func(line string)) error {
	file, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	reader := bufio.NewReader(file)
	var partial string
	drain := func() error {
		for {
			chunk, err := reader.ReadString('\n')
			if err == io.EOF {
				partial += chunk
				return nil
			}
			if err != nil {
				return fmt.Errorf("error reading log file: %w", err)
			}
			emit(strings.TrimRight(partial+chunk, "\r\n"))
			partial = ""
		}
	}
	// Catch lines written between the seek and the watch
	if err := drain(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write != 0 {
				if err := drain(); err != nil {
					return err
				}
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}
