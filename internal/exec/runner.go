package exec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
)

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns combined stdout/stderr output.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	return cmd.CombinedOutput()
}

// RunShell executes a shell command through "sh -c", or as a PowerShell
// script on Windows.
func (r *ExecRunner) RunShell(ctx context.Context, workDir string, command string) ([]byte, error) {
	name, args := shellCommand(runtime.GOOS, command)
	return r.Run(ctx, workDir, name, args...)
}

// RunLogged executes a shell command and tees its output to w.
func (r *ExecRunner) RunLogged(ctx context.Context, workDir string, command string, w io.Writer) Result {
	name, args := shellCommand(runtime.GOOS, command)
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}

	var buf bytes.Buffer
	out := &lockedWriter{w: &buf}
	if w != nil {
		out.w = io.MultiWriter(&buf, w)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err != nil {
		fmt.Fprintf(out, "\n%v\n", err)
	}
	return Result{Success: err == nil, Logs: buf.String()}
}

// Exists checks if a command is available on PATH.
func (r *ExecRunner) Exists(_ context.Context, name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// shellCommand returns the program and arguments that run command. On
// Windows the script is passed to PowerShell as a single argument; going
// through cmd /C would re-quote it with escapes cmd does not understand.
func shellCommand(goos, command string) (string, []string) {
	if goos == "windows" {
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", command}
	}
	return "sh", []string{"-c", command}
}

// lockedWriter serializes writes from stdout and stderr.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Verify ExecRunner implements CommandRunner at compile time.
var _ CommandRunner = (*ExecRunner)(nil)
