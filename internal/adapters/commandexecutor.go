package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// CommandExecutorAdapter implements the CommandExecutor interface
type CommandExecutorAdapter struct{}

var _ ports.CommandExecutor = (*CommandExecutorAdapter)(nil)

// NewCommandExecutorAdapter creates a new CommandExecutorAdapter instance
func NewCommandExecutorAdapter() *CommandExecutorAdapter {
	return &CommandExecutorAdapter{}
}

// Run executes a command with the given arguments and working directory,
// capturing its output. A non-zero exit is not an error: callers inspect
// the returned ExitResult.
func (c *CommandExecutorAdapter) Run(ctx context.Context, name string, args []string, dir string) (domain.ExitResult, error) {
	if name == "" {
		return domain.ExitResult{}, fmt.Errorf("command cannot be empty")
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := domain.ExitResult{
		Code:   0,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Code = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to execute command %s: %w", name, err)
	}

	return result, nil
}
