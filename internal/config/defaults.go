package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFlows are written to <base>/flows by InitDefaultFiles.
var DefaultFlows = map[string]string{
	"new": `name: new
steps:
  - agent: prompt-builder
    until: AGENT_DONE
  - agent: planner
    until: AGENT_DONE
  - loop:
      - agent: coder
        until: AGENT_DONE
      - agent: checker
        until: AGENT_DONE
    until: TASK_COMPLETE
`,
	"review": `name: review
steps:
  - agent: reviewer
    until: AGENT_DONE
  - loop:
      - agent: coder
        until: AGENT_DONE
      - agent: checker
        until: AGENT_DONE
    until: TASK_COMPLETE
`,
	"continue": `name: continue
steps:
  - agent: refiner
    until: AGENT_DONE
  - loop:
      - agent: coder
        until: AGENT_DONE
      - agent: checker
        until: AGENT_DONE
    until: TASK_COMPLETE
`,
	"new-multi": `name: new-multi
steps:
  - agent: repo-inspector
    until: AGENT_DONE
    post_hook: setup_repos
  - agent: prompt-builder
    until: AGENT_DONE
  - agent: planner
    until: AGENT_DONE
  - loop:
      - agent: coder
        until: AGENT_DONE
        on_blocked: pause
      - agent: checker
        until: AGENT_DONE
    until: TASK_COMPLETE
`,
}

// DefaultCommands are written to <base>/commands by InitDefaultFiles. A
// stored command is a flow with an id and a description that runs on a
// task without replacing the task's own flow.
var DefaultCommands = map[string]string{
	"create-pr": `name: Create Draft PR
id: create-pr
description: Open a draft pull request for the branch and fix failing CI checks
steps:
  - agent: pr-creator
    until: AGENT_DONE
  - agent: pr-check-monitor
    until: AGENT_DONE
`,
	"address-review": `name: Address Review
id: address-review
description: Weigh pull request review comments, draft replies in REVIEW.md and implement the agreed changes
steps:
  - agent: review-analyst
    until: AGENT_DONE
  - agent: review-implementer
    until: AGENT_DONE
`,
	"rebase": `name: Rebase
id: rebase
description: Rebase the branch onto another branch and resolve conflicts
requires_arg: branch
steps:
  - agent: rebase-executor
    until: AGENT_DONE
`,
}

// DefaultPrompts are written to <base>/prompts by InitDefaultFiles.
var DefaultPrompts = map[string]string{
	"prompt-builder": `You are a prompt-builder agent. Turn the rough request in the # Goal section of TASK.md
into a precise, context-rich task description a planner can work from.

1. Read TASK.md and any agent instruction files in the repository (AGENTS.md, CLAUDE.md, CONTRIBUTING.md).
2. Explore the code that the request touches and note the conventions it follows.
3. Rewrite # Goal with the clarified intent, relevant context and every design decision resolved.
4. Leave # Plan untouched.

If you need a decision from the user, append a [QUESTIONS] section to TASK.md and output exactly: INPUT_NEEDED
If the requested work already exists, explain why in TASK.md and output exactly: TASK_COMPLETE
Otherwise output exactly: AGENT_DONE
`,
	"planner": `You are a planner agent. Read the # Goal section of TASK.md and write an ordered, concrete
implementation plan into the # Plan section using this layout:

## Completed
## Remaining
- [ ] step

Each step must be small enough for one coding session. Do not write code.
If you need user input, output exactly: INPUT_NEEDED
When the plan is written, output exactly: AGENT_DONE
`,
	"coder": `You are a coder agent. Read TASK.md, pick the next unchecked item under ## Remaining in # Plan,
implement it, run the relevant tests and commit your work with a descriptive message.
Move the finished item to ## Completed and mark it [x].

If you are blocked by something outside the repository, output exactly: TASK_BLOCKED
If you need user input, output exactly: INPUT_NEEDED
When the step is committed, output exactly: AGENT_DONE
`,
	"checker": `You are a checker agent. Compare the committed work with the # Goal and # Plan in TASK.md.
Run the test suite. If anything is missing or broken, add precise items under ## Remaining.

If every goal is met and the tests pass, output exactly: TASK_COMPLETE
If work remains, output exactly: AGENT_DONE
If you cannot assess completion without the user, output exactly: INPUT_NEEDED
`,
	"reviewer": `You are a reviewer agent. Review the changes on the current branch against its base.
Write every issue you find as an unchecked item under ## Remaining in the # Plan section of TASK.md.

If the branch needs no changes, output exactly: TASK_COMPLETE
Otherwise output exactly: AGENT_DONE
`,
	"refiner": `You are a refiner agent. The user left follow-up feedback on a task that already ran.
Read the feedback below, the current diff and TASK.md. Update # Goal with the new intent and
replace ## Remaining in # Plan with the steps the feedback requires.

If you need user input, output exactly: INPUT_NEEDED
When TASK.md is updated, output exactly: AGENT_DONE
`,
	"repo-inspector": `You are a repo-inspector agent. The working directory contains several git repositories.
Read the # Goal section of TASK.md, inspect each repository briefly and decide which ones the task touches.

Write a # Repos section into TASK.md after # Goal and before # Plan, in exactly this format:

# Repos
- repo-name: one-line rationale

Repo names must match directory names under the working directory. Do not modify # Goal and do not plan.
Do not ask questions. When the section is written, output exactly: AGENT_DONE
`,
	"pr-creator": `You are a pr-creator agent. Open a draft pull request for the current branch.

1. Push the branch to origin if it has unpushed commits.
2. Write a title and a description from # Goal in TASK.md and the commits on the branch.
3. Create the pull request as a draft with the gh CLI and note its URL in TASK.md.

If no pull request can be created, explain why in TASK.md and output exactly: INPUT_NEEDED
When the draft pull request exists, output exactly: AGENT_DONE
`,
	"pr-check-monitor": `You are a pr-check-monitor agent. Watch the CI checks of the pull request for the current branch.

Wait for the checks to finish. Re-run a check that failed for reasons unrelated to the change.
For a real failure, fix the code, commit, push and wait for the new run.

If a failure needs a decision from the user, output exactly: INPUT_NEEDED
When every check passes, output exactly: AGENT_DONE
`,
	"review-analyst": `You are a review-analyst agent. Read the review comments on the pull request for the current branch.
Judge each comment on its merits. Write REVIEW.md in the task directory with, per comment, whether you
agree, a proposed reply and the change you would make.

When REVIEW.md is written, output exactly: AGENT_DONE
`,
	"review-implementer": `You are a review-implementer agent. Read REVIEW.md in the task directory and implement every change
marked as agreed. Run the tests and commit. Do not push and do not post replies.

If you need user input, output exactly: INPUT_NEEDED
When the changes are committed, output exactly: AGENT_DONE
`,
	"rebase-executor": `You are a rebase-executor agent. The task directory contains .rebase-target with the branch to
rebase onto.

1. Fetch origin. Rebase onto origin/<target> if it exists, otherwise onto the local <target>.
2. Resolve each conflict keeping the intent of both sides, then continue the rebase.
3. Build the project and run its tests once the rebase is done. Fix what the rebase broke.
4. Remove .rebase-target.

If you cannot finish the rebase, run git rebase --abort, explain why in TASK.md and output exactly: INPUT_NEEDED
When the rebase is complete and the project builds, output exactly: AGENT_DONE
`,
}

// InitDefaultFiles writes the default flows, commands and prompts. Existing files are
// kept unless force is set, so user edits survive repeated calls.
func InitDefaultFiles(cfg *Config, force bool) error {
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create config directories: %w", err)
	}

	for name, content := range DefaultFlows {
		if err := writeDefault(cfg.FlowPath(name), content, force); err != nil {
			return err
		}
	}
	for id, content := range DefaultCommands {
		if err := writeDefault(cfg.CommandPath(id), content, force); err != nil {
			return err
		}
	}
	for agent, content := range DefaultPrompts {
		if err := writeDefault(cfg.PromptPath(agent), content, force); err != nil {
			return err
		}
	}
	return nil
}

func writeDefault(path, content string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
