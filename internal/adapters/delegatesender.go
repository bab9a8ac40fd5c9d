package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

var ErrSenderEmptyCommand = fmt.Errorf("sender command cannot be empty")

// SubprocessSender implements DelegateSender by invoking an external
// delivery command with the artifact path as its final argument
type SubprocessSender struct {
	executor ports.CommandExecutor
	command  string
	args     []string
	logger   ports.Logger
}

var _ ports.DelegateSender = (*SubprocessSender)(nil)

// NewSubprocessSender creates a new SubprocessSender
func NewSubprocessSender(executor ports.CommandExecutor, command string, args []string, logger ports.Logger) (*SubprocessSender, error) {
	if executor == nil {
		return nil, fmt.Errorf("subprocess sender requires an executor")
	}
	if command == "" {
		return nil, ErrSenderEmptyCommand
	}
	if logger == nil {
		logger = NewNopLogger()
	}

	return &SubprocessSender{
		executor: executor,
		command:  command,
		args:     args,
		logger:   logger,
	}, nil
}

// Send hands localPath to the external command and waits for it to exit
func (s *SubprocessSender) Send(ctx context.Context, localPath string) error {
	args := append(append([]string{}, s.args...), localPath)

	s.logger.Info("delegating artifact to sender", "command", s.command, "path", localPath)

	result, err := s.executor.Run(ctx, s.command, args, "")
	if err != nil {
		return fmt.Errorf("failed to run sender command: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("sender exited with code %d: %s", result.Code, strings.TrimSpace(result.Stderr))
	}

	return nil
}
