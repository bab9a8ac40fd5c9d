package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// RetryUploader error constants
var (
	ErrRetryBackendNil  = errors.New("backend uploader cannot be nil")
	ErrRetryBadAttempts = errors.New("max attempts must be positive")
	ErrRetryUploaderNil = errors.New("retry uploader cannot be nil")
)

// RetryNotifyFunc is invoked after each failed attempt that will be
// retried, carrying the attempt number and the failure
type RetryNotifyFunc func(attempt, maxAttempts int, err error)

// RetryUploader decorates an upload backend with bounded retry and a
// fixed backoff interval. Credential and structural errors are never
// retried; only errors marked transient by the backend are.
type RetryUploader struct {
	backend     ports.Uploader
	maxAttempts int
	backoff     time.Duration
	notify      RetryNotifyFunc
}

// Compile-time check to ensure RetryUploader implements ports.Uploader
var _ ports.Uploader = (*RetryUploader)(nil)

// NewRetryUploader creates a retry decorator around backend. notify may
// be nil.
func NewRetryUploader(backend ports.Uploader, maxAttempts int, backoff time.Duration, notify RetryNotifyFunc) (*RetryUploader, error) {
	if backend == nil {
		return nil, ErrRetryBackendNil
	}
	if maxAttempts <= 0 {
		return nil, ErrRetryBadAttempts
	}

	return &RetryUploader{
		backend:     backend,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		notify:      notify,
	}, nil
}

// Upload attempts the backend call up to maxAttempts times, sleeping
// the fixed backoff between attempts. Exhausting the ceiling surfaces
// a terminal error wrapping the last underlying failure.
func (r *RetryUploader) Upload(ctx context.Context, localPath string, name string, destHint string) (*domain.UploadResult, error) {
	if r == nil {
		return nil, ErrRetryUploaderNil
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		result, err := r.backend.Upload(ctx, localPath, name, destHint)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !ports.IsTransient(err) {
			return nil, err
		}

		if r.notify != nil {
			r.notify(attempt, r.maxAttempts, err)
		}

		if attempt == r.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoff):
		}
	}

	return nil, fmt.Errorf("upload failed after %d attempts: %w", r.maxAttempts, lastErr)
}
