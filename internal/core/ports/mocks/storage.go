package mocks

import (
	"context"
	"io/fs"

	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// MockStorageRepository is a mock implementation of StorageRepository for testing
type MockStorageRepository struct {
	ListFunc   func(ctx context.Context, prefix string) ([]string, error)
	StatFunc   func(ctx context.Context, key string) (fs.FileInfo, error)
	DeleteFunc func(ctx context.Context, key string) error
}

// NewMockStorageRepository creates a new mock storage repository
func NewMockStorageRepository() *MockStorageRepository {
	return &MockStorageRepository{}
}

// List returns all keys with the given prefix
func (m *MockStorageRepository) List(ctx context.Context, prefix string) ([]string, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, prefix)
	}
	return []string{}, nil
}

// Stat returns metadata for a key
func (m *MockStorageRepository) Stat(ctx context.Context, key string) (fs.FileInfo, error) {
	if m.StatFunc != nil {
		return m.StatFunc(ctx, key)
	}
	return nil, nil
}

// Delete removes data by key
func (m *MockStorageRepository) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

var _ ports.StorageRepository = (*MockStorageRepository)(nil)
