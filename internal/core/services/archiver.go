package services

import (
	"archive/zip"
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// ZipArchiver error constants
var (
	ErrArchiverFilesNil  = errors.New("file info cache cannot be nil")
	ErrArchiverClockNil  = errors.New("clock cannot be nil")
	ErrArchiverLoggerNil = errors.New("logger cannot be nil")
	ErrArchiverNil       = errors.New("archiver cannot be nil")
)

// ZipArchiver walks a selection of paths and streams them into a single
// compressed zip artifact, preserving structure relative to the job's
// root path. Entries are processed strictly in selection order, one at
// a time, with a small yield between top-level entries to bound peak
// memory and file-descriptor pressure when directories expand to many
// leaf files.
type ZipArchiver struct {
	files       *FileInfoCache
	clock       ports.Clock
	logger      ports.Logger
	yieldDelay  time.Duration
	minStep     int
	minInterval time.Duration
}

// NewZipArchiver creates a new archive builder
func NewZipArchiver(files *FileInfoCache, clock ports.Clock, logger ports.Logger, yieldDelay time.Duration, minStep int, minInterval time.Duration) (*ZipArchiver, error) {
	if files == nil {
		return nil, ErrArchiverFilesNil
	}
	if clock == nil {
		return nil, ErrArchiverClockNil
	}
	if logger == nil {
		return nil, ErrArchiverLoggerNil
	}

	return &ZipArchiver{
		files:       files,
		clock:       clock,
		logger:      logger,
		yieldDelay:  yieldDelay,
		minStep:     minStep,
		minInterval: minInterval,
	}, nil
}

type resolvedEntry struct {
	abs  string
	info domain.FileInfo
}

// Build creates the archive at job.OutputPath. Missing selection
// entries are skipped with a warning, never fatal; any I/O error while
// reading a source file or writing the output aborts the whole job.
// The artifact is a valid archive only after Build returns nil: the
// final writer Close is the finalization step.
func (a *ZipArchiver) Build(ctx context.Context, job *domain.ArchiveJob, onProgress ports.ProgressFunc) error {
	if a == nil {
		return ErrArchiverNil
	}
	if job == nil {
		return domain.ErrJobNil
	}

	root := ""
	if job.RootPath != "" {
		root = a.files.Resolve(job.RootPath)
	}

	entries, total := a.resolveSelection(job.Selection)
	job.TotalBytes = total

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.Create(job.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	// Favor throughput over ratio, matching the rest of the pipeline
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestSpeed)
	})

	throttle := a.newThrottle(total, job, onProgress)

	for _, entry := range entries {
		if err := a.addPath(ctx, zw, entry, root, throttle); err != nil {
			zw.Close()
			return fmt.Errorf("failed to add %s to archive: %w", entry.abs, err)
		}

		// Yield between top-level entries so one huge directory cannot
		// monopolize file handles and memory
		select {
		case <-ctx.Done():
			zw.Close()
			return ctx.Err()
		case <-time.After(a.yieldDelay):
		}
	}

	// Finalization: only after Close succeeds is the artifact complete
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close archive file: %w", err)
	}

	throttle.finish()
	return nil
}

// resolveSelection stats every selected path in order, dropping missing
// entries, and returns the survivors plus the total byte count
func (a *ZipArchiver) resolveSelection(selection []string) ([]resolvedEntry, int64) {
	var entries []resolvedEntry
	var total int64

	for _, path := range selection {
		abs := a.files.Resolve(path)
		info := a.files.Stat(abs)
		if !info.Exists {
			a.logger.Warn("Skipping missing path", "path", abs)
			continue
		}

		if info.IsDir {
			total += dirSize(abs)
		} else {
			total += info.Size
		}
		entries = append(entries, resolvedEntry{abs: abs, info: info})
	}

	return entries, total
}

func dirSize(root string) int64 {
	var size int64
	_ = filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped later too
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

func (a *ZipArchiver) addPath(ctx context.Context, zw *zip.Writer, entry resolvedEntry, root string, throttle *progressThrottle) error {
	name := relativeName(entry.abs, root)

	if !entry.info.IsDir {
		return a.addFile(zw, entry.abs, name, entry.info.Size, throttle)
	}

	return filepath.Walk(entry.abs, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			a.logger.Warn("Skipping unreadable entry", "path", path, "error", err)
			return nil
		}

		rel, err := filepath.Rel(entry.abs, path)
		if err != nil {
			return err
		}

		entryName := name
		if rel != "." {
			entryName = filepath.ToSlash(filepath.Join(name, rel))
		}

		if info.IsDir() {
			header, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			header.Name = entryName + "/"
			_, err = zw.CreateHeader(header)
			return err
		}

		return a.addFile(zw, path, entryName, info.Size(), throttle)
	})
}

func (a *ZipArchiver) addFile(zw *zip.Writer, path, name string, size int64, throttle *progressThrottle) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(stat)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(writer, file); err != nil {
		return err
	}

	throttle.add(size)
	return nil
}

// relativeName computes the archive entry name for abs under root,
// falling back to the basename when the path lies outside the root or
// no root was given
func relativeName(abs, root string) string {
	if root == "" {
		return filepath.Base(abs)
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Base(abs)
	}

	return filepath.ToSlash(rel)
}

// progressThrottle reports progress only when the percentage advances
// by at least minStep points, minInterval has elapsed, or the job is
// done, so the progress channel is not flooded by small files
type progressThrottle struct {
	clock       ports.Clock
	job         *domain.ArchiveJob
	total       int64
	emit        ports.ProgressFunc
	minStep     int
	minInterval time.Duration

	processed   int64
	lastPercent int
	lastEmit    time.Time
}

func (a *ZipArchiver) newThrottle(total int64, job *domain.ArchiveJob, emit ports.ProgressFunc) *progressThrottle {
	return &progressThrottle{
		clock:       a.clock,
		job:         job,
		total:       total,
		emit:        emit,
		minStep:     a.minStep,
		minInterval: a.minInterval,
		lastEmit:    a.clock.Now(),
	}
}

func (t *progressThrottle) add(n int64) {
	t.processed += n
	t.job.BytesProcessed = t.processed

	if t.emit == nil || t.total <= 0 {
		return
	}

	percent := int(t.processed * 100 / t.total)
	now := t.clock.Now()

	if percent >= t.lastPercent+t.minStep || now.Sub(t.lastEmit) >= t.minInterval || percent == 100 {
		t.lastPercent = percent
		t.lastEmit = now
		t.emit(t.processed, t.total)
	}
}

// finish always reports the terminal 100% sample
func (t *progressThrottle) finish() {
	t.job.BytesProcessed = t.processed
	if t.emit != nil {
		t.emit(t.processed, t.total)
	}
}
