package tooling

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout string, stderr string, err error)
}

// ExitCoder is satisfied by errors that carry a process exit code
// (e.g., *exec.ExitError).
type ExitCoder interface {
	ExitCode() int
}

// ExecCommandRunner runs a binary directly via os/exec; no shell is involved.
// There is no timeout: only cancellation of ctx stops a blocked process.
type ExecCommandRunner struct{}

// Run executes name with args in dir and returns stdout, stderr, and any error.
func (e *ExecCommandRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
