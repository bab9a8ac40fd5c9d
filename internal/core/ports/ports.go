package ports

import (
	"context"
	"io/fs"
	"time"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
)

// Uploader is the common capability of every remote storage backend:
// deliver a local artifact under the given display name and return a
// stable reference to it. destHint is backend-specific (a folder token,
// a Drive folder id, a remote path segment, a key prefix).
type Uploader interface {
	Upload(ctx context.Context, localPath string, name string, destHint string) (*domain.UploadResult, error)
}

// ProgressFunc reports incremental transfer progress
type ProgressFunc func(processed, total int64)

// ProgressUploader is an optional capability for backends that can
// report byte-level progress during the transfer
type ProgressUploader interface {
	Uploader
	UploadWithProgress(ctx context.Context, localPath string, name string, destHint string, onProgress ProgressFunc) (*domain.UploadResult, error)
}

// FolderCreator is an optional backend capability
type FolderCreator interface {
	CreateFolder(ctx context.Context, name string, parentHint string) (*domain.FolderRef, error)
}

// ChatSender is an optional backend capability: deliver a file into a
// chat/channel context by reference
type ChatSender interface {
	SendToChat(ctx context.Context, localPath string, name string, chatID string) (*domain.ChatMessageRef, error)
}

// DelegateSender hands a finished artifact to an external delivery
// delegate (a subprocess-based sender). It reports no byte progress.
type DelegateSender interface {
	Send(ctx context.Context, localPath string) error
}

// CommandExecutor runs an external command and returns its structured
// exit result so subprocess delegates are testable without a real binary
type CommandExecutor interface {
	Run(ctx context.Context, name string, args []string, dir string) (domain.ExitResult, error)
}

// ProgressPublisher routes a progress event to the subscriber registered
// under the given session id. Publishing to an unknown id is a no-op:
// progress reporting must never fail the underlying job.
type ProgressPublisher interface {
	Publish(sessionID string, evt Event)
}

// Clock abstracts time so TTL behavior is deterministic under test
type Clock interface {
	Now() time.Time
}

// SystemInfo exposes process memory diagnostics for the periodic sweep
type SystemInfo interface {
	MemoryUsage() (domain.MemoryStats, error)
}

// Logger defines structured logging operations
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// StorageRepository defines the interface for local artifact storage.
// Keys are paths relative to the repository root.
type StorageRepository interface {
	// List returns all keys with the given prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Stat returns metadata for a key
	Stat(ctx context.Context, key string) (fs.FileInfo, error)

	// Delete removes data by key
	Delete(ctx context.Context, key string) error
}
