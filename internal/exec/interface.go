// Package exec provides an interface for command execution.
package exec

import (
	"context"
	"io"
)

// Result is the outcome of a logged shell command.
type Result struct {
	// Success is true when the command exited with status zero.
	Success bool `json:"success"`
	// Logs is the combined stdout/stderr output.
	Logs string `json:"logs"`
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunShell executes a shell command through the platform shell (sh, or
	// PowerShell on Windows).
	RunShell(ctx context.Context, workDir string, command string) (output []byte, err error)

	// RunLogged executes a shell command, copying its output to w as it is
	// produced. w may be nil.
	RunLogged(ctx context.Context, workDir string, command string, w io.Writer) Result

	// Exists checks if a command is available on PATH.
	Exists(ctx context.Context, name string) bool
}
