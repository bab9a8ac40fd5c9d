package services

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// FileInfoCache error constants
var (
	ErrFileCacheClockNil = errors.New("clock cannot be nil")
	ErrFileCacheBadTTL   = errors.New("ttl must be positive")
)

type cacheEntry struct {
	info     domain.FileInfo
	cachedAt time.Time
}

// FileInfoCache resolves paths and caches stat results for a short TTL
// to avoid repeated filesystem syscalls during a single archive pass.
// Non-existent paths are cached too, so repeated failed stats are cheap.
// Eviction is time-based only; Sweep bounds memory under long uptimes.
type FileInfoCache struct {
	clock ports.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewFileInfoCache creates a cache with the given freshness window
func NewFileInfoCache(clock ports.Clock, ttl time.Duration) (*FileInfoCache, error) {
	if clock == nil {
		return nil, ErrFileCacheClockNil
	}
	if ttl <= 0 {
		return nil, ErrFileCacheBadTTL
	}

	return &FileInfoCache{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}, nil
}

// Resolve converts a user-supplied path to an absolute path. A path
// that cannot be resolved is returned unchanged; the subsequent Stat
// will report it as missing.
func (c *FileInfoCache) Resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// Stat returns FileInfo for the given absolute path, serving a cached
// result while it is fresher than the TTL. A missing path reports
// Exists=false and is never an error.
func (c *FileInfoCache) Stat(absPath string) domain.FileInfo {
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[absPath]
	c.mu.RUnlock()

	if ok && now.Sub(entry.cachedAt) < c.ttl {
		return entry.info
	}

	info := statPath(absPath)

	c.mu.Lock()
	c.entries[absPath] = cacheEntry{info: info, cachedAt: now}
	c.mu.Unlock()

	return info
}

func statPath(absPath string) domain.FileInfo {
	stat, err := os.Stat(absPath)
	if err != nil {
		return domain.FileInfo{Exists: false}
	}
	return domain.FileInfo{
		Exists:  true,
		IsDir:   stat.IsDir(),
		Size:    stat.Size(),
		ModTime: stat.ModTime(),
	}
}

// Sweep removes entries older than the TTL regardless of access and
// returns how many were evicted
func (c *FileInfoCache) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, entry := range c.entries {
		if now.Sub(entry.cachedAt) >= c.ttl {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the current number of cached entries
func (c *FileInfoCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
