package clips

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Runner runs an external command. This abstraction lets the clip strategies
// be tested without ffmpeg installed.
type Runner interface {
	// Run executes name with args and returns the combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command. A failed command's output is folded into the
// returned error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// MockRunner records commands and answers them from Factory, or with success
// when Factory is nil.
type MockRunner struct {
	mu       sync.Mutex
	Commands []MockCommand
	// Factory returns the output and error for a command.
	Factory func(name string, args []string) ([]byte, error)
}

// MockCommand records one command run through MockRunner.
type MockCommand struct {
	Name string
	Args []string
}

// Run records the command and returns the Factory result.
func (m *MockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.Commands = append(m.Commands, MockCommand{Name: name, Args: append([]string(nil), args...)})
	f := m.Factory
	m.mu.Unlock()
	if f != nil {
		return f(name, args)
	}
	return nil, nil
}

// Calls returns a copy of the recorded commands.
func (m *MockRunner) Calls() []MockCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCommand(nil), m.Commands...)
}
