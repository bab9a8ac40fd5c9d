package mocks

import (
	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// MockSystemInfo is a mock implementation of SystemInfo for testing
type MockSystemInfo struct {
	MemoryUsageFunc func() (domain.MemoryStats, error)
}

// NewMockSystemInfo creates a new mock system info provider
func NewMockSystemInfo() *MockSystemInfo {
	return &MockSystemInfo{}
}

// MemoryUsage returns the configured memory stats
func (m *MockSystemInfo) MemoryUsage() (domain.MemoryStats, error) {
	if m.MemoryUsageFunc != nil {
		return m.MemoryUsageFunc()
	}
	return domain.MemoryStats{}, nil
}

var _ ports.SystemInfo = (*MockSystemInfo)(nil)
