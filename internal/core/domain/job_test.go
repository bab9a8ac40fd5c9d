package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArchiveJob(t *testing.T) {
	tests := []struct {
		name      string
		selection []string
		output    string
		wantErr   error
	}{
		{
			name:      "successful creation",
			selection: []string{"/data/a.txt"},
			output:    "/downloads/a.zip",
			wantErr:   nil,
		},
		{
			name:      "empty selection",
			selection: nil,
			output:    "/downloads/a.zip",
			wantErr:   ErrJobSelectionEmpty,
		},
		{
			name:      "empty output path",
			selection: []string{"/data/a.txt"},
			output:    "",
			wantErr:   ErrJobOutputEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := NewArchiveJob(tt.selection, "/data", tt.output, "session-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, job)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StageStart, job.Stage)
			assert.Equal(t, "session-1", job.SessionID)
		})
	}
}

func TestArchiveJobAdvance(t *testing.T) {
	t.Run("full lifecycle in order", func(t *testing.T) {
		job, err := NewArchiveJob([]string{"a"}, "", "out.zip", "")
		require.NoError(t, err)

		assert.NoError(t, job.Advance(StageCompressing))
		assert.NoError(t, job.Advance(StageUploading))
		assert.NoError(t, job.Advance(StageCompleted))
		assert.True(t, job.Stage.Terminal())
	})

	t.Run("skipping a stage forward is allowed", func(t *testing.T) {
		job, err := NewArchiveJob([]string{"a"}, "", "out.zip", "")
		require.NoError(t, err)

		assert.NoError(t, job.Advance(StageUploading))
		assert.Equal(t, StageUploading, job.Stage)
	})

	t.Run("moving backwards is rejected", func(t *testing.T) {
		job, err := NewArchiveJob([]string{"a"}, "", "out.zip", "")
		require.NoError(t, err)
		require.NoError(t, job.Advance(StageUploading))

		err = job.Advance(StageCompressing)
		assert.Error(t, err)
		assert.Equal(t, StageUploading, job.Stage)
	})

	t.Run("error is reachable from any non-terminal stage", func(t *testing.T) {
		for _, from := range []Stage{StageStart, StageCompressing, StageUploading} {
			job, err := NewArchiveJob([]string{"a"}, "", "out.zip", "")
			require.NoError(t, err)
			if from != StageStart {
				require.NoError(t, job.Advance(from))
			}

			assert.NoError(t, job.Advance(StageError))
			assert.Equal(t, StageError, job.Stage)
		}
	})

	t.Run("terminal stages never change", func(t *testing.T) {
		job, err := NewArchiveJob([]string{"a"}, "", "out.zip", "")
		require.NoError(t, err)
		require.NoError(t, job.Advance(StageCompleted))

		assert.Error(t, job.Advance(StageError))
		assert.Equal(t, StageCompleted, job.Stage)
	})
}

func TestArchiveJobPercent(t *testing.T) {
	tests := []struct {
		name      string
		processed int64
		total     int64
		want      int
	}{
		{name: "zero total", processed: 10, total: 0, want: 0},
		{name: "halfway", processed: 50, total: 100, want: 50},
		{name: "complete", processed: 100, total: 100, want: 100},
		{name: "overshoot clamps to 100", processed: 120, total: 100, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &ArchiveJob{BytesProcessed: tt.processed, TotalBytes: tt.total}
			assert.Equal(t, tt.want, job.Percent())
		})
	}
}

func TestArchiveJobRaisePercent(t *testing.T) {
	t.Run("records and returns increasing values", func(t *testing.T) {
		job := &ArchiveJob{}
		assert.Equal(t, 25, job.RaisePercent(25))
		assert.Equal(t, 90, job.RaisePercent(90))
	})

	t.Run("lower values return the high-water mark", func(t *testing.T) {
		job := &ArchiveJob{}
		job.RaisePercent(90)
		assert.Equal(t, 90, job.RaisePercent(58))
		assert.Equal(t, 90, job.RaisePercent(50))
		assert.Equal(t, 100, job.RaisePercent(100))
	})

	t.Run("nil job passes through", func(t *testing.T) {
		var job *ArchiveJob
		assert.Equal(t, 40, job.RaisePercent(40))
	})
}

func TestZipNameFor(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	tests := []struct {
		name string
		root string
		want string
	}{
		{name: "unix path", root: "/data/projects/photos", want: "photos.zip"},
		{name: "windows path", root: `C:\data\projects\photos`, want: "photos.zip"},
		{name: "trailing slash", root: "/data/photos/", want: "photos.zip"},
		{name: "empty root falls back to timestamp", root: "", want: fmt.Sprintf("selected_files_%d.zip", now.UnixMilli())},
		{name: "only separators falls back to timestamp", root: "///", want: fmt.Sprintf("selected_files_%d.zip", now.UnixMilli())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ZipNameFor(tt.root, now))
		})
	}
}
