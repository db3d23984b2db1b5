package github

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Cmd describes one process execution. Args are passed as explicit argv;
// nothing is interpreted by a shell.
type Cmd struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the inherited environment and override it.
	Env []string

	// When set, the corresponding stream is wired directly instead of being
	// captured into the Result.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Result is the outcome of a process that started.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// CommandRunner is an interface for executing system commands
// This abstraction allows us to mock command execution in tests
type CommandRunner interface {
	// Run executes the command. A non-zero exit is reported through
	// Result.ExitCode with a nil error; a failure to start is a *LaunchError.
	Run(ctx context.Context, cmd Cmd) (*Result, error)
}

// RealCommandRunner is the production implementation using os/exec
type RealCommandRunner struct{}

// Run executes a command using os/exec
func (r *RealCommandRunner) Run(ctx context.Context, c Cmd) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	cmd.Stderr = &stderr
	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	}

	err := cmd.Run()
	result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return nil, &LaunchError{Executable: c.Name, Err: err}
}

// MockCommandRunner is a test implementation that returns predefined responses
type MockCommandRunner struct {
	// RunFunc is called when Run is invoked
	RunFunc func(cmd Cmd) (*Result, error)

	// Calls tracks all command invocations
	Calls []MockCall
}

// MockCall represents a single command invocation
type MockCall struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// Run executes the mock function
func (m *MockCommandRunner) Run(_ context.Context, c Cmd) (*Result, error) {
	m.Calls = append(m.Calls, MockCall{
		Name: c.Name,
		Args: append([]string(nil), c.Args...),
		Dir:  c.Dir,
		Env:  append([]string(nil), c.Env...),
	})

	if m.RunFunc != nil {
		return m.RunFunc(c)
	}

	return &Result{}, nil
}

// NewMockCommandRunner creates a new mock with default behavior
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		Calls: make([]MockCall, 0),
	}
}
