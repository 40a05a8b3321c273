package task

import (
	"testing"

	"github.com/Iron-Ham/agman/internal/errors"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
		display  string
	}{
		{StatusRunning, false, "running"},
		{StatusStopped, false, "stopped"},
		{StatusInputNeeded, false, "input needed"},
		{StatusOnHold, false, "on hold"},
		{StatusDone, true, "done"},
		{StatusFailed, true, "failed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if !tt.status.Valid() {
				t.Errorf("%q should be valid", tt.status)
			}
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.status.String(); got != tt.display {
				t.Errorf("String() = %q, want %q", got, tt.display)
			}
		})
	}

	if Status("paused").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestTask_SingleRepoAccessors(t *testing.T) {
	tk := &Task{
		Name:       "app",
		BranchName: "feat",
		Repos: []RepoEntry{
			{RepoName: "app", WorktreePath: "/code/app-wt/feat", TmuxSession: "(app)__feat"},
		},
	}

	if tk.ID() != "app--feat" {
		t.Errorf("ID() = %q, want %q", tk.ID(), "app--feat")
	}
	if tk.IsMultiRepo() {
		t.Error("single-repo task reported as multi-repo")
	}
	primary, err := tk.PrimaryRepo()
	if err != nil {
		t.Fatalf("PrimaryRepo() error = %v", err)
	}
	if primary.RepoName != "app" {
		t.Errorf("PrimaryRepo().RepoName = %q", primary.RepoName)
	}
	wd, err := tk.WorkDir()
	if err != nil || wd != "/code/app-wt/feat" {
		t.Errorf("WorkDir() = (%q, %v), want the checkout", wd, err)
	}
	session, err := tk.AttachSession()
	if err != nil || session != "(app)__feat" {
		t.Errorf("AttachSession() = (%q, %v)", session, err)
	}
	if tk.ParentSession() != "" {
		t.Error("single-repo task has no parent session")
	}
	if got := tk.RepoPath("/code", "app"); got != "/code/app" {
		t.Errorf("RepoPath() = %q, want %q", got, "/code/app")
	}
}

func TestTask_MultiRepoDuringDiscovery(t *testing.T) {
	tk := &Task{Name: "repos", BranchName: "feat", ParentDir: "/work/repos", Repos: []RepoEntry{}}

	if !tk.IsMultiRepo() {
		t.Error("task with parent dir must be multi-repo even with no repos")
	}
	if tk.HasRepos() {
		t.Error("HasRepos() = true for empty list")
	}
	if _, err := tk.PrimaryRepo(); !errors.Is(err, errors.ErrNoRepos) {
		t.Errorf("PrimaryRepo() error = %v, want ErrNoRepos", err)
	}

	// Working directory and attach target do not need repos for multi-repo tasks
	wd, err := tk.WorkDir()
	if err != nil || wd != "/work/repos" {
		t.Errorf("WorkDir() = (%q, %v), want parent dir", wd, err)
	}
	session, err := tk.AttachSession()
	if err != nil || session != "(repos)__feat" {
		t.Errorf("AttachSession() = (%q, %v)", session, err)
	}
	if got := tk.RepoPath("/code", "svcA"); got != "/work/repos/svcA" {
		t.Errorf("RepoPath() = %q, want %q", got, "/work/repos/svcA")
	}
}

func TestTask_SingleRepoWithoutReposFailsWorkDir(t *testing.T) {
	tk := &Task{Name: "app", BranchName: "feat"}
	if _, err := tk.WorkDir(); !errors.Is(err, errors.ErrNoRepos) {
		t.Errorf("WorkDir() error = %v, want ErrNoRepos", err)
	}
}

func TestTask_AddRepoIsIdempotent(t *testing.T) {
	tk := &Task{}
	entry := RepoEntry{RepoName: "svcA", WorktreePath: "/a", TmuxSession: "(svcA)__feat"}

	if !tk.AddRepo(entry) {
		t.Error("first AddRepo() should change the list")
	}
	if tk.AddRepo(RepoEntry{RepoName: "svcA", WorktreePath: "/other"}) {
		t.Error("second AddRepo() for the same repo should be a no-op")
	}
	if len(tk.Repos) != 1 || tk.Repos[0].WorktreePath != "/a" {
		t.Errorf("Repos = %+v", tk.Repos)
	}
}
