package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports/mocks"
)

func TestNewRcloneBackend(t *testing.T) {
	executor := mocks.NewMockCommandExecutor()

	t.Run("successful creation", func(t *testing.T) {
		backend, err := NewRcloneBackend(executor, "rclone", "remote:uploads", nil, nil)
		assert.NoError(t, err)
		assert.NotNil(t, backend)
	})

	t.Run("nil executor", func(t *testing.T) {
		_, err := NewRcloneBackend(nil, "rclone", "remote:uploads", nil, nil)
		assert.ErrorIs(t, err, ErrRcloneNilExecutor)
	})

	t.Run("empty remote", func(t *testing.T) {
		_, err := NewRcloneBackend(executor, "rclone", "", nil, nil)
		assert.ErrorIs(t, err, ErrRcloneEmptyRemote)
	})
}

func TestRcloneUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("single file uses copyto", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "a.zip")
		require.NoError(t, os.WriteFile(file, []byte("zip"), 0644))

		executor := mocks.NewMockCommandExecutor()
		backend, err := NewRcloneBackend(executor, "rclone", "remote:uploads", []string{"--transfers=8"}, nil)
		require.NoError(t, err)

		result, err := backend.Upload(ctx, file, "a.zip", "")
		require.NoError(t, err)
		assert.Equal(t, "remote:uploads/a.zip", result.RemoteID)

		require.Len(t, executor.Calls, 1)
		call := executor.Calls[0]
		assert.Equal(t, "rclone", call.Name)
		assert.Equal(t, []string{"copyto", file, "remote:uploads/a.zip", "--transfers=8"}, call.Args)
	})

	t.Run("directory uses copy with empty dirs", func(t *testing.T) {
		dir := t.TempDir()

		executor := mocks.NewMockCommandExecutor()
		backend, err := NewRcloneBackend(executor, "rclone", "remote:uploads", nil, nil)
		require.NoError(t, err)

		_, err = backend.Upload(ctx, dir, "photos", "")
		require.NoError(t, err)

		require.Len(t, executor.Calls, 1)
		call := executor.Calls[0]
		assert.Equal(t, []string{"copy", "--create-empty-src-dirs", dir, "remote:uploads/photos"}, call.Args)
	})

	t.Run("dest hint extends the remote path", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "a.zip")
		require.NoError(t, os.WriteFile(file, []byte("zip"), 0644))

		executor := mocks.NewMockCommandExecutor()
		backend, err := NewRcloneBackend(executor, "rclone", "remote:uploads", nil, nil)
		require.NoError(t, err)

		result, err := backend.Upload(ctx, file, "a.zip", "2024/09")
		require.NoError(t, err)
		assert.Equal(t, "remote:uploads/2024/09/a.zip", result.RemoteID)
	})

	t.Run("non-zero exit is a transient failure", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "a.zip")
		require.NoError(t, os.WriteFile(file, []byte("zip"), 0644))

		executor := mocks.NewMockCommandExecutor()
		executor.RunFunc = func(ctx context.Context, name string, args []string, dir string) (domain.ExitResult, error) {
			return domain.ExitResult{Code: 1, Stderr: "couldn't connect"}, nil
		}

		backend, err := NewRcloneBackend(executor, "rclone", "remote:uploads", nil, nil)
		require.NoError(t, err)

		_, err = backend.Upload(ctx, file, "a.zip", "")
		assert.Error(t, err)
		assert.True(t, ports.IsTransient(err))
		assert.ErrorContains(t, err, "couldn't connect")
	})

	t.Run("missing source is an error", func(t *testing.T) {
		executor := mocks.NewMockCommandExecutor()
		backend, err := NewRcloneBackend(executor, "rclone", "remote:uploads", nil, nil)
		require.NoError(t, err)

		_, err = backend.Upload(ctx, filepath.Join(t.TempDir(), "gone.zip"), "gone.zip", "")
		assert.Error(t, err)
		assert.Empty(t, executor.Calls)
	})
}

func TestJoinRemotePath(t *testing.T) {
	tests := []struct {
		name     string
		segments []string
		want     string
	}{
		{name: "simple join", segments: []string{"remote:uploads", "a.zip"}, want: "remote:uploads/a.zip"},
		{name: "empty segments dropped", segments: []string{"remote:uploads", "", "a.zip"}, want: "remote:uploads/a.zip"},
		{name: "slashes trimmed", segments: []string{"remote:uploads/", "/sub/", "a.zip"}, want: "remote:uploads/sub/a.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinRemotePath(tt.segments...))
		})
	}
}
