// Package gitops wraps the git CLI for the two things taskbridge needs from a
// local checkout: the URLs of its remotes, and applying a task's diff.
//
// Commands run through a CommandExecutor so tests can script git's output
// without a repository.
package gitops

import (
	"context"
	"os/exec"
)

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Run executes a command in dir and returns combined output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// NewCLICommandExecutor creates a new CLI command executor.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{}
}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Git runs git commands in a fixed directory.
type Git struct {
	dir      string
	executor CommandExecutor
}

// New creates a Git for dir using the real git CLI. An empty dir means the
// process's working directory.
func New(dir string) *Git {
	return &Git{dir: dir, executor: NewCLICommandExecutor()}
}

// NewWithExecutor creates a Git with a custom executor.
// This is primarily useful for testing.
func NewWithExecutor(dir string, executor CommandExecutor) *Git {
	return &Git{dir: dir, executor: executor}
}

// Dir returns the directory commands run in.
func (g *Git) Dir() string {
	return g.dir
}

func (g *Git) run(ctx context.Context, args ...string) ([]byte, error) {
	return g.executor.Run(ctx, g.dir, "git", args...)
}
