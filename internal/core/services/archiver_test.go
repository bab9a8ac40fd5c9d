package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports/mocks"
	"github.com/hoanghieutb97/server-downfilein/internal/testhelpers"
)

func newTestArchiver(t *testing.T) *ZipArchiver {
	t.Helper()

	clock := mocks.NewMockClock(time.Now())
	cache, err := NewFileInfoCache(clock, 30*time.Second)
	require.NoError(t, err)

	archiver, err := NewZipArchiver(cache, clock, mocks.NewMockLogger(), 0, 1, 2*time.Second)
	require.NoError(t, err)
	return archiver
}

func TestNewZipArchiver(t *testing.T) {
	clock := mocks.NewMockClock(time.Now())
	cache, err := NewFileInfoCache(clock, time.Second)
	require.NoError(t, err)
	logger := mocks.NewMockLogger()

	tests := []struct {
		name    string
		files   *FileInfoCache
		clock   ports.Clock
		logger  ports.Logger
		wantErr error
	}{
		{name: "successful creation", files: cache, clock: clock, logger: logger},
		{name: "nil cache", files: nil, clock: clock, logger: logger, wantErr: ErrArchiverFilesNil},
		{name: "nil clock", files: cache, clock: nil, logger: logger, wantErr: ErrArchiverClockNil},
		{name: "nil logger", files: cache, clock: clock, logger: nil, wantErr: ErrArchiverLoggerNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archiver, err := NewZipArchiver(tt.files, tt.clock, tt.logger, 0, 1, time.Second)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, archiver)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, archiver)
			}
		})
	}
}

func TestZipArchiverBuild(t *testing.T) {
	t.Run("archives files and folders relative to root", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, testhelpers.WriteTree(root, map[string]string{
			"readme.txt":         "hello",
			"photos/one.jpg":     "aaa",
			"photos/sub/two.jpg": "bbb",
		}))

		out := filepath.Join(t.TempDir(), "out.zip")
		job, err := domain.NewArchiveJob(
			[]string{filepath.Join(root, "readme.txt"), filepath.Join(root, "photos")},
			root, out, "")
		require.NoError(t, err)

		archiver := newTestArchiver(t)
		require.NoError(t, archiver.Build(context.Background(), job, nil))

		entries, err := testhelpers.ZipEntries(out)
		require.NoError(t, err)
		assert.Contains(t, entries, "readme.txt")
		assert.Contains(t, entries, "photos/")
		assert.Contains(t, entries, "photos/one.jpg")
		assert.Contains(t, entries, "photos/sub/two.jpg")

		content, err := testhelpers.ReadZipEntry(out, "readme.txt")
		require.NoError(t, err)
		assert.Equal(t, "hello", content)
	})

	t.Run("missing entries are skipped not fatal", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, testhelpers.WriteTree(root, map[string]string{
			"kept.txt": "kept",
		}))

		out := filepath.Join(t.TempDir(), "out.zip")
		job, err := domain.NewArchiveJob(
			[]string{filepath.Join(root, "kept.txt"), filepath.Join(root, "gone.txt")},
			root, out, "")
		require.NoError(t, err)

		archiver := newTestArchiver(t)
		require.NoError(t, archiver.Build(context.Background(), job, nil))

		entries, err := testhelpers.ZipEntries(out)
		require.NoError(t, err)
		assert.Equal(t, []string{"kept.txt"}, entries)
	})

	t.Run("all entries missing yields a valid empty archive", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.zip")
		job, err := domain.NewArchiveJob([]string{filepath.Join(t.TempDir(), "gone.txt")}, "", out, "")
		require.NoError(t, err)

		archiver := newTestArchiver(t)
		require.NoError(t, archiver.Build(context.Background(), job, nil))

		entries, err := testhelpers.ZipEntries(out)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("no root uses basenames", func(t *testing.T) {
		src := t.TempDir()
		require.NoError(t, testhelpers.WriteTree(src, map[string]string{"deep/file.txt": "x"}))

		out := filepath.Join(t.TempDir(), "out.zip")
		job, err := domain.NewArchiveJob([]string{filepath.Join(src, "deep", "file.txt")}, "", out, "")
		require.NoError(t, err)

		archiver := newTestArchiver(t)
		require.NoError(t, archiver.Build(context.Background(), job, nil))

		entries, err := testhelpers.ZipEntries(out)
		require.NoError(t, err)
		assert.Equal(t, []string{"file.txt"}, entries)
	})

	t.Run("selection outside root falls back to basename", func(t *testing.T) {
		root := t.TempDir()
		elsewhere := t.TempDir()
		require.NoError(t, testhelpers.WriteTree(elsewhere, map[string]string{"outside.txt": "x"}))

		out := filepath.Join(t.TempDir(), "out.zip")
		job, err := domain.NewArchiveJob([]string{filepath.Join(elsewhere, "outside.txt")}, root, out, "")
		require.NoError(t, err)

		archiver := newTestArchiver(t)
		require.NoError(t, archiver.Build(context.Background(), job, nil))

		entries, err := testhelpers.ZipEntries(out)
		require.NoError(t, err)
		assert.Equal(t, []string{"outside.txt"}, entries)
	})

	t.Run("reports total bytes and terminal progress", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, testhelpers.WriteTree(root, map[string]string{
			"a.txt": "12345",
			"b.txt": "67890",
		}))

		out := filepath.Join(t.TempDir(), "out.zip")
		job, err := domain.NewArchiveJob(
			[]string{filepath.Join(root, "a.txt"), filepath.Join(root, "b.txt")},
			root, out, "")
		require.NoError(t, err)

		var samples [][2]int64
		archiver := newTestArchiver(t)
		err = archiver.Build(context.Background(), job, func(processed, total int64) {
			samples = append(samples, [2]int64{processed, total})
		})
		require.NoError(t, err)

		assert.Equal(t, int64(10), job.TotalBytes)
		assert.Equal(t, int64(10), job.BytesProcessed)
		require.NotEmpty(t, samples)

		last := samples[len(samples)-1]
		assert.Equal(t, int64(10), last[0])

		// processed never decreases across samples
		for i := 1; i < len(samples); i++ {
			assert.GreaterOrEqual(t, samples[i][0], samples[i-1][0])
		}
	})

	t.Run("cancelled context aborts the build", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, testhelpers.WriteTree(root, map[string]string{"dir/a.txt": "x"}))

		out := filepath.Join(t.TempDir(), "out.zip")
		job, err := domain.NewArchiveJob([]string{filepath.Join(root, "dir")}, root, out, "")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		archiver := newTestArchiver(t)
		err = archiver.Build(ctx, job, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
