package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// RelayService error constants
var (
	ErrRelayFilesNil     = errors.New("file info cache cannot be nil")
	ErrRelayArchiverNil  = errors.New("archiver cannot be nil")
	ErrRelayBackendNil   = errors.New("upload backend cannot be nil")
	ErrRelayPublisherNil = errors.New("progress publisher cannot be nil")
	ErrRelayClockNil     = errors.New("clock cannot be nil")
	ErrRelayLoggerNil    = errors.New("logger cannot be nil")
	ErrRelayDirEmpty     = errors.New("download directory cannot be empty")
	ErrRelayNil          = errors.New("relay service cannot be nil")
	ErrRelayNoSender     = errors.New("no delegate sender configured")
)

// ErrArchiveFailed marks failures that happened before a complete
// artifact existed on disk; callers must not offer the partial output
var ErrArchiveFailed = errors.New("archive build failed")

// RetryPolicy is the bounded-retry configuration applied to a backend.
// Attempts <= 1 disables retrying.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// RelayService coordinates one archive-and-upload job: resolve the
// selection, stream it into a compressed artifact, hand the artifact to
// the configured backend, report stage transitions to the progress
// channel, and clean up the local artifact on success. A job runs to
// completion or failure; a disconnected progress subscriber never
// cancels it.
type RelayService struct {
	files       *FileInfoCache
	archiver    *ZipArchiver
	backend     ports.Uploader
	destHint    string
	retry       RetryPolicy
	publisher   ports.ProgressPublisher
	queue       *SerialQueue
	sender      ports.DelegateSender
	chat        ports.ChatSender
	chatID      string
	clock       ports.Clock
	logger      ports.Logger
	downloadDir string
}

// NewRelayService creates the relay pipeline. queue and sender are only
// required for the delegate-send path and may be nil otherwise.
func NewRelayService(
	files *FileInfoCache,
	archiver *ZipArchiver,
	backend ports.Uploader,
	destHint string,
	retry RetryPolicy,
	publisher ports.ProgressPublisher,
	queue *SerialQueue,
	sender ports.DelegateSender,
	clock ports.Clock,
	logger ports.Logger,
	downloadDir string,
) (*RelayService, error) {
	if files == nil {
		return nil, ErrRelayFilesNil
	}
	if archiver == nil {
		return nil, ErrRelayArchiverNil
	}
	if backend == nil {
		return nil, ErrRelayBackendNil
	}
	if publisher == nil {
		return nil, ErrRelayPublisherNil
	}
	if clock == nil {
		return nil, ErrRelayClockNil
	}
	if logger == nil {
		return nil, ErrRelayLoggerNil
	}
	if downloadDir == "" {
		return nil, ErrRelayDirEmpty
	}

	return &RelayService{
		files:       files,
		archiver:    archiver,
		backend:     backend,
		destHint:    destHint,
		retry:       retry,
		publisher:   publisher,
		queue:       queue,
		sender:      sender,
		clock:       clock,
		logger:      logger,
		downloadDir: downloadDir,
	}, nil
}

// NotifyChat enables best-effort delivery of each uploaded artifact
// into a chat after the upload completes. A failed delivery is logged
// and never fails the job.
func (s *RelayService) NotifyChat(chat ports.ChatSender, chatID string) {
	s.chat = chat
	s.chatID = chatID
}

// RunJob executes the full archive-and-upload pipeline for one request.
// The returned zip name is valid even on failure, so callers can offer
// the locally retained artifact as a fallback.
func (s *RelayService) RunJob(ctx context.Context, selection []string, rootPath, sessionID string) (*domain.UploadResult, string, error) {
	if s == nil {
		return nil, "", ErrRelayNil
	}

	root := ""
	if rootPath != "" {
		root = s.files.Resolve(rootPath)
	}

	zipName := domain.ZipNameFor(root, s.clock.Now())
	outputPath := filepath.Join(s.downloadDir, zipName)

	job, err := domain.NewArchiveJob(selection, root, outputPath, sessionID)
	if err != nil {
		return nil, zipName, err
	}

	s.publish(job, ports.StageEvent{Stage: domain.StageStart, Message: "Starting archive job", Percent: 0})

	if err := s.compress(ctx, job); err != nil {
		return nil, zipName, s.fail(job, err)
	}

	result, err := s.uploadArtifact(ctx, job, zipName)
	if err != nil {
		return nil, zipName, s.fail(job, err)
	}

	if err := job.Advance(domain.StageCompleted); err != nil {
		return nil, zipName, s.fail(job, err)
	}
	s.publisher.Publish(job.SessionID, ports.CompletedEvent{Message: "Upload completed", Result: result})

	if s.chat != nil && s.chatID != "" {
		if _, err := s.chat.SendToChat(ctx, job.OutputPath, zipName, s.chatID); err != nil {
			s.logger.Warn("Cannot deliver archive to chat", "chat_id", s.chatID, "error", err)
		}
	}

	// The artifact has been handed off; reclaim local disk now rather
	// than waiting for the retention sweep
	if err := os.Remove(job.OutputPath); err != nil {
		s.logger.Warn("Cannot remove uploaded archive", "path", job.OutputPath, "error", err)
	}

	return result, zipName, nil
}

// ZipAndSend archives the selection and hands the artifact to the
// serialized delegate sender. The artifact stays on disk for the
// retention sweeper since the delegate reads it out of band.
func (s *RelayService) ZipAndSend(ctx context.Context, selection []string, rootPath string) (string, string, error) {
	if s == nil {
		return "", "", ErrRelayNil
	}
	if s.queue == nil || s.sender == nil {
		return "", "", ErrRelayNoSender
	}

	root := ""
	if rootPath != "" {
		root = s.files.Resolve(rootPath)
	}

	zipName := domain.ZipNameFor(root, s.clock.Now())
	outputPath := filepath.Join(s.downloadDir, zipName)

	job, err := domain.NewArchiveJob(selection, root, outputPath, "")
	if err != nil {
		return "", "", err
	}

	if err := s.compress(ctx, job); err != nil {
		return "", "", err
	}

	if err := s.queue.Do(func() error {
		return s.sender.Send(ctx, outputPath)
	}); err != nil {
		return "", "", fmt.Errorf("delegate send failed: %w", err)
	}

	return zipName, outputPath, nil
}

// compress runs the archive builder, mapping its progress to the first
// half of the job's percentage range
func (s *RelayService) compress(ctx context.Context, job *domain.ArchiveJob) error {
	if err := job.Advance(domain.StageCompressing); err != nil {
		return err
	}

	sampler := newSpeedSampler(s.clock)
	onProgress := func(processed, total int64) {
		percent := 100
		if total > 0 {
			percent = int(processed * 100 / total)
		}
		speed := sampler.sample(processed)
		s.publish(job, ports.StageEvent{
			Stage: domain.StageCompressing,
			Message: fmt.Sprintf("Compressing... %d%% (%.1fMB / %.1fMB) - %.1fMB/s",
				percent, mb(processed), mb(total), speed),
			Percent: percent / 2,
		})
	}

	if err := s.archiver.Build(ctx, job, onProgress); err != nil {
		return fmt.Errorf("%w: %w", ErrArchiveFailed, err)
	}
	return nil
}

// uploadArtifact hands the artifact to the backend, wrapped in the
// configured retry policy, mapping byte progress (when the backend
// reports it) to the second half of the percentage range
func (s *RelayService) uploadArtifact(ctx context.Context, job *domain.ArchiveJob, zipName string) (*domain.UploadResult, error) {
	if err := job.Advance(domain.StageUploading); err != nil {
		return nil, err
	}
	s.publish(job, ports.StageEvent{Stage: domain.StageUploading, Message: "Uploading archive...", Percent: 50})

	inner := s.backend
	if pu, ok := s.backend.(ports.ProgressUploader); ok {
		inner = uploaderFunc(func(ctx context.Context, localPath, name, destHint string) (*domain.UploadResult, error) {
			return pu.UploadWithProgress(ctx, localPath, name, destHint, func(processed, total int64) {
				percent := 100
				if total > 0 {
					percent = int(processed * 100 / total)
				}
				s.publish(job, ports.StageEvent{
					Stage:   domain.StageUploading,
					Message: fmt.Sprintf("Uploading... %d%% (%.1fMB / %.1fMB)", percent, mb(processed), mb(total)),
					Percent: 50 + percent/2,
				})
			})
		})
	}

	uploader := inner
	if s.retry.Attempts > 1 {
		notify := func(attempt, maxAttempts int, err error) {
			s.logger.Warn("Upload attempt failed", "attempt", attempt, "max", maxAttempts, "error", err)
			percent := 50 + attempt*8
			if percent > 90 {
				percent = 90
			}
			s.publish(job, ports.StageEvent{
				Stage:   domain.StageUploading,
				Message: fmt.Sprintf("Upload attempt %d failed, retrying... (%d/%d)", attempt, attempt, maxAttempts),
				Percent: percent,
			})
		}

		retrying, err := NewRetryUploader(inner, s.retry.Attempts, s.retry.Backoff, notify)
		if err != nil {
			return nil, err
		}
		uploader = retrying
	}

	result, err := uploader.Upload(ctx, job.OutputPath, zipName, s.destHint)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	return result, nil
}

// fail collapses any failure into a terminal error event plus the
// returned error; the partial artifact stays on disk for inspection
func (s *RelayService) fail(job *domain.ArchiveJob, err error) error {
	stage := job.Stage
	if advErr := job.Advance(domain.StageError); advErr != nil {
		s.logger.Error("Cannot mark job failed", "error", advErr)
	}
	s.publisher.Publish(job.SessionID, ports.ErrorEvent{Stage: stage, Err: err})
	s.logger.Error("Archive job failed", "stage", string(stage), "error", err)
	return err
}

// publish forwards evt to the session, clamping stage percentages to
// the job's high-water mark so retries never report progress backwards
func (s *RelayService) publish(job *domain.ArchiveJob, evt ports.Event) {
	if se, ok := evt.(ports.StageEvent); ok {
		se.Percent = job.RaisePercent(se.Percent)
		s.publisher.Publish(job.SessionID, se)
		return
	}
	s.publisher.Publish(job.SessionID, evt)
}

// uploaderFunc adapts a function to ports.Uploader
type uploaderFunc func(ctx context.Context, localPath, name, destHint string) (*domain.UploadResult, error)

func (f uploaderFunc) Upload(ctx context.Context, localPath, name, destHint string) (*domain.UploadResult, error) {
	return f(ctx, localPath, name, destHint)
}

// speedSampler computes transfer speed from the delta since the
// previous emitted sample, not since a resetting reference point
type speedSampler struct {
	clock     ports.Clock
	lastBytes int64
	lastTime  time.Time
}

func newSpeedSampler(clock ports.Clock) *speedSampler {
	return &speedSampler{clock: clock, lastTime: clock.Now()}
}

// sample returns MB/s since the previous call
func (s *speedSampler) sample(processed int64) float64 {
	now := s.clock.Now()
	elapsed := now.Sub(s.lastTime).Seconds()
	delta := processed - s.lastBytes

	s.lastTime = now
	s.lastBytes = processed

	if elapsed <= 0 || delta <= 0 {
		return 0
	}
	return mb(delta) / elapsed
}

func mb(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
