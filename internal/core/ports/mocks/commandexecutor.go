package mocks

import (
	"context"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// MockCommandExecutor is a mock implementation of CommandExecutor for testing
type MockCommandExecutor struct {
	RunFunc func(ctx context.Context, name string, args []string, dir string) (domain.ExitResult, error)

	// Calls records every invocation for assertion
	Calls []ExecutorCall
}

// ExecutorCall captures one Run invocation
type ExecutorCall struct {
	Name string
	Args []string
	Dir  string
}

// NewMockCommandExecutor creates a new mock command executor
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{}
}

// Run records the invocation and delegates to RunFunc
func (m *MockCommandExecutor) Run(ctx context.Context, name string, args []string, dir string) (domain.ExitResult, error) {
	m.Calls = append(m.Calls, ExecutorCall{Name: name, Args: args, Dir: dir})
	if m.RunFunc != nil {
		return m.RunFunc(ctx, name, args, dir)
	}
	return domain.ExitResult{Code: 0}, nil
}

var _ ports.CommandExecutor = (*MockCommandExecutor)(nil)
