package mocks

import (
	"sync"

	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// MockLogger records log calls for assertion
type MockLogger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

// LogEntry captures one log call
type LogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// NewMockLogger creates a new recording logger
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (l *MockLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

// Info records an info message
func (l *MockLogger) Info(msg string, args ...any) { l.record("info", msg, args) }

// Warn records a warning message
func (l *MockLogger) Warn(msg string, args ...any) { l.record("warn", msg, args) }

// Error records an error message
func (l *MockLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

// Debug records a debug message
func (l *MockLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }

// Messages returns every recorded message at the given level
func (l *MockLogger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.Entries {
		if e.Level == level {
			msgs = append(msgs, e.Msg)
		}
	}
	return msgs
}

var _ ports.Logger = (*MockLogger)(nil)
