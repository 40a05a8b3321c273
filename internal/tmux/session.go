package tmux

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Iron-Ham/agman/internal/errors"
)

// DefaultWindowCommands are the start commands of the standard windows.
// Windows not listed start an empty shell.
var DefaultWindowCommands = map[string]string{
	"nvim":    "nvim",
	"lazygit": "lazygit",
	"claude":  "claude --dangerously-skip-permissions",
	"shell":   "git status && git branch --show-current",
}

// Window is one window of a session layout.
type Window struct {
	Name    string
	Command string
}

// Layout builds a window layout from window names, attaching the default
// start command of each known window.
func Layout(names []string) []Window {
	windows := make([]Window, len(names))
	for i, name := range names {
		windows[i] = Window{Name: name, Command: DefaultWindowCommands[name]}
	}
	return windows
}

// Client manages sessions on one tmux server.
type Client struct {
	socket string
	runner Runner
}

// New creates a Client for the server at socket ("" for the default).
func New(socket string) *Client {
	return &Client{socket: socket, runner: CLIRunner{Socket: socket}}
}

// NewWithRunner creates a Client with a custom runner.
func NewWithRunner(socket string, runner Runner) *Client {
	return &Client{socket: socket, runner: runner}
}

// Exists reports whether a session named name exists.
func (c *Client) Exists(ctx context.Context, name string) bool {
	_, err := c.runner.Run(ctx, "has-session", "-t", exactTarget(name))
	return err == nil
}

// Create opens a detached session rooted at dir with the given windows,
// starts each window's command and selects the first window. Only the
// session itself must succeed; window setup is best-effort. It returns
// false without touching anything when the session already exists.
func (c *Client) Create(ctx context.Context, name, dir string, windows []Window) (bool, error) {
	if c.Exists(ctx, name) {
		return false, nil
	}
	if len(windows) == 0 {
		windows = []Window{{Name: "shell"}}
	}

	first := windows[0]
	if output, err := c.runner.Run(ctx, "new-session", "-d", "-s", name, "-c", dir, "-n", first.Name); err != nil {
		return false, fmt.Errorf("failed to create tmux session %s: %w: %w\n%s", name, errors.ErrSessionUnavailable, err, strings.TrimSpace(string(output)))
	}
	_ = c.startWindow(ctx, name, first)

	for _, w := range windows[1:] {
		if _, err := c.runner.Run(ctx, "new-window", "-t", exactTarget(name)+":", "-n", w.Name, "-c", dir); err != nil {
			continue
		}
		_ = c.startWindow(ctx, name, w)
	}

	_, _ = c.runner.Run(ctx, "select-window", "-t", WindowTarget(name, first.Name))
	return true, nil
}

func (c *Client) startWindow(ctx context.Context, session string, w Window) error {
	if w.Command == "" {
		return nil
	}
	return c.SendKeys(ctx, WindowTarget(session, w.Name), w.Command)
}

// Kill removes a session. A missing session is not an error.
func (c *Client) Kill(ctx context.Context, name string) error {
	if !c.Exists(ctx, name) {
		return nil
	}
	if output, err := c.runner.Run(ctx, "kill-session", "-t", exactTarget(name)); err != nil {
		return fmt.Errorf("failed to kill tmux session %s: %w: %w\n%s", name, errors.ErrSessionUnavailable, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// SendKeys types keys into target followed by Enter.
func (c *Client) SendKeys(ctx context.Context, target, keys string) error {
	if output, err := c.runner.Run(ctx, "send-keys", "-t", target, keys, "C-m"); err != nil {
		return fmt.Errorf("failed to send keys to %s: %w: %w\n%s", target, errors.ErrSessionUnavailable, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Attach connects the terminal to a session. Inside tmux it switches the
// current client; outside it runs attach-session in the foreground.
func (c *Client) Attach(name string) error {
	target := exactTarget(name)
	if os.Getenv("TMUX") != "" {
		if err := Command(c.socket, "switch-client", "-t", target).Run(); err == nil {
			return nil
		}
	}

	cmd := Command(c.socket, "attach-session", "-t", target)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to attach to tmux session %s: %w: %w", name, errors.ErrSessionUnavailable, err)
	}
	return nil
}

// WindowTarget addresses a window of a session.
func WindowTarget(session, window string) string {
	return exactTarget(session) + ":" + window
}

// exactTarget prevents tmux from prefix-matching another session whose
// name starts with name.
func exactTarget(name string) string {
	return "=" + name
}
