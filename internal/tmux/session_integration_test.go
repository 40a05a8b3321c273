//go:build integration

package tmux

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/Iron-Ham/agman/internal/config"
	"github.com/Iron-Ham/agman/internal/testutil"
)

func TestClient_DottedBranchSessionLifecycle(t *testing.T) {
	testutil.SkipIfNoTmux(t)

	socket := fmt.Sprintf("agman-tmux-test-%d", os.Getpid())
	c := New(socket)
	t.Cleanup(func() {
		_ = Command(socket, "kill-server").Run()
	})

	ctx := context.Background()
	name := config.SessionName("app", "v1.2")
	dir := t.TempDir()

	created, err := c.Create(ctx, name, dir, []Window{{Name: "shell"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !created {
		t.Fatal("Create() should create a new session")
	}
	if !c.Exists(ctx, name) {
		t.Fatalf("Exists(%q) = false after Create", name)
	}

	created, err = c.Create(ctx, name, dir, []Window{{Name: "shell"}})
	if err != nil || created {
		t.Errorf("second Create() = %v, %v; want false, nil", created, err)
	}

	if err := c.Kill(ctx, name); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}
	if c.Exists(ctx, name) {
		t.Errorf("session %q still exists after Kill", name)
	}
}
