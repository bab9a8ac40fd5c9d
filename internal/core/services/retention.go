package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hoanghieutb97/server-downfilein/internal/config"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// RetentionSweeper error constants
var (
	ErrRetentionStorageNil = errors.New("storage repository cannot be nil")
	ErrRetentionCacheNil   = errors.New("file info cache cannot be nil")
	ErrRetentionClockNil   = errors.New("clock cannot be nil")
	ErrRetentionLoggerNil  = errors.New("logger cannot be nil")
	ErrRetentionNil        = errors.New("retention sweeper cannot be nil")
)

// RetentionSweeper reclaims local disk and memory in the background:
// stale archive artifacts are deleted after a fixed retention window,
// and expired file-info cache entries are evicted periodically.
type RetentionSweeper struct {
	storage ports.StorageRepository
	cache   *FileInfoCache
	clock   ports.Clock
	logger  ports.Logger
	system  ports.SystemInfo // optional, for memory diagnostics
	maxAge  time.Duration
}

// NewRetentionSweeper creates a sweeper over the downloads storage.
// system may be nil, in which case memory diagnostics are skipped.
func NewRetentionSweeper(storage ports.StorageRepository, cache *FileInfoCache, clock ports.Clock, logger ports.Logger, system ports.SystemInfo, maxAge time.Duration) (*RetentionSweeper, error) {
	if storage == nil {
		return nil, ErrRetentionStorageNil
	}
	if cache == nil {
		return nil, ErrRetentionCacheNil
	}
	if clock == nil {
		return nil, ErrRetentionClockNil
	}
	if logger == nil {
		return nil, ErrRetentionLoggerNil
	}

	return &RetentionSweeper{
		storage: storage,
		cache:   cache,
		clock:   clock,
		logger:  logger,
		system:  system,
		maxAge:  maxAge,
	}, nil
}

// SweepArchives deletes retained archives older than the retention
// window, regardless of job outcome. A single failed deletion is
// logged and does not stop the sweep.
func (s *RetentionSweeper) SweepArchives(ctx context.Context) (int, error) {
	if s == nil {
		return 0, ErrRetentionNil
	}

	keys, err := s.storage.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list archives: %w", err)
	}

	now := s.clock.Now()
	removed := 0

	for _, key := range keys {
		if !strings.HasSuffix(strings.ToLower(key), config.ArchiveExtension) {
			continue
		}

		stat, err := s.storage.Stat(ctx, key)
		if err != nil {
			s.logger.Warn("Cannot stat retained archive", "key", key, "error", err)
			continue
		}

		if now.Sub(stat.ModTime()) <= s.maxAge {
			continue
		}

		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("Cannot delete stale archive", "key", key, "error", err)
			continue
		}

		s.logger.Info("Deleted stale archive", "key", key)
		removed++
	}

	return removed, nil
}

// SweepCache evicts expired file-info entries and logs process memory
// usage, mirroring the periodic memory housekeeping of long runs with
// very large trees
func (s *RetentionSweeper) SweepCache() {
	if s == nil {
		return
	}

	evicted := s.cache.Sweep()
	if evicted > 0 {
		s.logger.Debug("Evicted expired file-info entries", "count", evicted)
	}

	if s.system == nil {
		return
	}

	stats, err := s.system.MemoryUsage()
	if err != nil {
		s.logger.Warn("Cannot read memory stats", "error", err)
		return
	}

	s.logger.Info("Memory usage",
		"rss_mb", fmt.Sprintf("%.1f", float64(stats.RSS)/(1024*1024)),
		"vms_mb", fmt.Sprintf("%.1f", float64(stats.VMS)/(1024*1024)),
		"system_used_percent", fmt.Sprintf("%.1f", stats.UsedPercent),
	)
}

// Run blocks until ctx is done, sweeping caches and archives on their
// respective intervals. An archive sweep also runs immediately at
// startup.
func (s *RetentionSweeper) Run(ctx context.Context, cacheEvery, archiveEvery time.Duration) {
	if s == nil {
		return
	}

	if _, err := s.SweepArchives(ctx); err != nil {
		s.logger.Error("Initial archive sweep failed", "error", err)
	}

	cacheTicker := time.NewTicker(cacheEvery)
	defer cacheTicker.Stop()
	archiveTicker := time.NewTicker(archiveEvery)
	defer archiveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cacheTicker.C:
			s.SweepCache()
		case <-archiveTicker.C:
			if _, err := s.SweepArchives(ctx); err != nil {
				s.logger.Error("Archive sweep failed", "error", err)
			}
		}
	}
}
