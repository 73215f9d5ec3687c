package tooling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gitpilot/internal/domain"
	"gitpilot/internal/security"
)

// gitBinary is the executable run_git_command invokes.
const gitBinary = "git"

// GitCommandInput is the input for run_git_command.
type GitCommandInput struct {
	Command string `json:"command" jsonschema_description:"Arguments for git without the leading 'git', e.g. 'status' or 'commit -m \"message\"'."`
}

// GitCommandTool runs git with model-supplied arguments inside the working
// directory. Arguments are split shell-style but never passed to a shell.
// A non-zero exit status is a normal result; only a failure to start git
// (or an unparsable command) is an error.
type GitCommandTool struct {
	guard  *security.PathGuard
	runner CommandRunner
}

// NewGitCommandTool creates a GitCommandTool bound to the guard's root.
func NewGitCommandTool(guard *security.PathGuard, runner CommandRunner) *GitCommandTool {
	return &GitCommandTool{guard: guard, runner: runner}
}

func (g *GitCommandTool) Name() string { return "run_git_command" }

func (g *GitCommandTool) Description() string {
	return "Runs a git command in the working directory and returns its stdout, stderr and exit code."
}

func (g *GitCommandTool) Definition() string { return GenerateSchema(GitCommandInput{}) }

func (g *GitCommandTool) Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	var input GitCommandInput
	if err := decodeInput(args, &input); err != nil {
		return nil, err
	}
	argv, err := splitCommandLine(input.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid git command %q: %w", input.Command, err)
	}
	// Models often repeat the binary name.
	if len(argv) > 0 && argv[0] == gitBinary {
		argv = argv[1:]
	}

	stdout, stderr, err := g.runner.Run(ctx, g.guard.Root(), gitBinary, argv...)
	exitCode := 0
	if err != nil {
		var exitErr ExitCoder
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("failed to run git: %w", err)
		}
	}

	return &domain.ToolResult{
		Data: map[string]any{
			"stdout":    stdout,
			"stderr":    stderr,
			"exit_code": exitCode,
		},
		Metadata: map[string]string{
			"command":   input.Command,
			"exit_code": strconv.Itoa(exitCode),
		},
	}, nil
}
