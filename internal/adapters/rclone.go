package adapters

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

var (
	ErrRcloneNilExecutor  = fmt.Errorf("rclone backend requires an executor")
	ErrRcloneEmptyRemote  = fmt.Errorf("rclone remote base cannot be empty")
	ErrRcloneEmptyCommand = fmt.Errorf("rclone command cannot be empty")
)

// RcloneBackend uploads artifacts by delegating to the rclone binary.
// It implements Uploader for both files and directories: directories
// are mirrored with "copy", single files renamed with "copyto".
type RcloneBackend struct {
	executor   ports.CommandExecutor
	command    string
	remoteBase string
	extraArgs  []string
	logger     ports.Logger
}

var _ ports.Uploader = (*RcloneBackend)(nil)

// NewRcloneBackend creates a new RcloneBackend
func NewRcloneBackend(executor ports.CommandExecutor, command, remoteBase string, extraArgs []string, logger ports.Logger) (*RcloneBackend, error) {
	if executor == nil {
		return nil, ErrRcloneNilExecutor
	}
	if command == "" {
		return nil, ErrRcloneEmptyCommand
	}
	if remoteBase == "" {
		return nil, ErrRcloneEmptyRemote
	}
	if logger == nil {
		logger = NewNopLogger()
	}

	return &RcloneBackend{
		executor:   executor,
		command:    command,
		remoteBase: remoteBase,
		extraArgs:  extraArgs,
		logger:     logger,
	}, nil
}

// Upload copies localPath to the configured remote. destHint, when set,
// is appended to the remote base as a sub-path.
func (r *RcloneBackend) Upload(ctx context.Context, localPath string, name string, destHint string) (*domain.UploadResult, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload source %s: %w", localPath, err)
	}

	remote := joinRemotePath(r.remoteBase, destHint)

	var args []string
	if info.IsDir() {
		args = append(args, "copy", "--create-empty-src-dirs", localPath, joinRemotePath(remote, name))
	} else {
		args = append(args, "copyto", localPath, joinRemotePath(remote, name))
	}
	args = append(args, r.extraArgs...)

	r.logger.Info("starting rclone transfer", "source", localPath, "remote", remote, "name", name)

	result, err := r.executor.Run(ctx, r.command, args, "")
	if err != nil {
		return nil, fmt.Errorf("failed to run rclone: %w", err)
	}
	if result.Code != 0 {
		return nil, ports.Transient(fmt.Errorf("rclone exited with code %d: %s", result.Code, strings.TrimSpace(result.Stderr)))
	}

	return &domain.UploadResult{
		RemoteID: joinRemotePath(remote, name),
		Name:     name,
	}, nil
}

// joinRemotePath joins rclone path segments with a single slash,
// dropping empty segments
func joinRemotePath(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}
