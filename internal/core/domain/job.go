package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage is a named phase of an archive job's lifecycle
type Stage string

const (
	StageStart       Stage = "start"
	StageCompressing Stage = "compressing"
	StageUploading   Stage = "uploading"
	StageCompleted   Stage = "completed"
	StageError       Stage = "error"
)

// stageOrder maps non-terminal stages to their position in the lifecycle
var stageOrder = map[Stage]int{
	StageStart:       0,
	StageCompressing: 1,
	StageUploading:   2,
	StageCompleted:   3,
}

// Terminal reports whether no further transitions are allowed from s
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// ArchiveJob error constants
var (
	ErrJobSelectionEmpty = errors.New("selection cannot be empty")
	ErrJobOutputEmpty    = errors.New("output path cannot be empty")
	ErrJobNil            = errors.New("archive job cannot be nil")
)

// ArchiveJob is one request-scoped packaging-and-upload operation.
// It is exclusively owned by the request handler that created it until
// the artifact is handed to the upload backend.
type ArchiveJob struct {
	Selection      []string
	RootPath       string
	OutputPath     string
	SessionID      string
	BytesProcessed int64
	TotalBytes     int64
	Stage          Stage

	peakPercent int
}

// NewArchiveJob creates a job in the start stage
func NewArchiveJob(selection []string, rootPath, outputPath, sessionID string) (*ArchiveJob, error) {
	if len(selection) == 0 {
		return nil, ErrJobSelectionEmpty
	}
	if outputPath == "" {
		return nil, ErrJobOutputEmpty
	}

	return &ArchiveJob{
		Selection:  selection,
		RootPath:   rootPath,
		OutputPath: outputPath,
		SessionID:  sessionID,
		Stage:      StageStart,
	}, nil
}

// Advance moves the job to the next stage. Transitions are monotonic:
// a terminal stage never changes, and error is reachable from any
// non-terminal stage.
func (j *ArchiveJob) Advance(next Stage) error {
	if j == nil {
		return ErrJobNil
	}
	if j.Stage.Terminal() {
		return fmt.Errorf("job already in terminal stage %s", j.Stage)
	}
	if next == StageError {
		j.Stage = next
		return nil
	}

	from, ok := stageOrder[j.Stage]
	to, nextOK := stageOrder[next]
	if !ok || !nextOK || to <= from {
		return fmt.Errorf("invalid stage transition %s -> %s", j.Stage, next)
	}

	j.Stage = next
	return nil
}

// Percent returns job completion of the archiving phase as 0-100
func (j *ArchiveJob) Percent() int {
	if j == nil || j.TotalBytes <= 0 {
		return 0
	}
	pct := int(j.BytesProcessed * 100 / j.TotalBytes)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// RaisePercent records p as the job's progress high-water mark and
// returns it, or returns the existing mark when p is lower. Reported
// progress never moves backwards within a job, even when an upload
// attempt restarts after a transient failure.
func (j *ArchiveJob) RaisePercent(p int) int {
	if j == nil {
		return p
	}
	if p < j.peakPercent {
		return j.peakPercent
	}
	j.peakPercent = p
	return p
}

// ZipNameFor derives the archive file name from the selection root.
// Falls back to a timestamped name when no root is given.
func ZipNameFor(rootPath string, now time.Time) string {
	if rootPath == "" {
		return fmt.Sprintf("selected_files_%d.zip", now.UnixMilli())
	}

	parts := strings.FieldsFunc(rootPath, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	if len(parts) == 0 {
		return fmt.Sprintf("selected_files_%d.zip", now.UnixMilli())
	}

	return parts[len(parts)-1] + ".zip"
}
