package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hoanghieutb97/server-downfilein/internal/adapters"
	"github.com/hoanghieutb97/server-downfilein/internal/api"
	"github.com/hoanghieutb97/server-downfilein/internal/config"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
	"github.com/hoanghieutb97/server-downfilein/internal/core/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := buildLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger ports.Logger) error {
	ctx := context.Background()

	clock := adapters.NewSystemClock()
	cache, err := services.NewFileInfoCache(clock, config.FileCacheTTL)
	if err != nil {
		return err
	}

	storage, err := adapters.NewFSRepository(cfg.DownloadDir)
	if err != nil {
		return fmt.Errorf("failed to open download directory: %w", err)
	}
	defer storage.Close()

	backend, err := buildBackend(ctx, cfg, clock, logger)
	if err != nil {
		return fmt.Errorf("failed to build %s backend: %w", cfg.Backend, err)
	}

	archiver, err := services.NewZipArchiver(cache, clock, logger,
		config.EntryYieldDelay, config.ProgressMinStep, config.ProgressMinInterval)
	if err != nil {
		return err
	}

	hub := api.NewProgressHub(logger)
	executor := adapters.NewCommandExecutorAdapter()

	var queue *services.SerialQueue
	var sender ports.DelegateSender
	if cfg.SenderCmd != "" {
		queue, err = services.NewSerialQueue(logger)
		if err != nil {
			return err
		}
		sender, err = adapters.NewSubprocessSender(executor, cfg.SenderCmd, cfg.SenderArgs, logger)
		if err != nil {
			return err
		}
	}

	relay, err := services.NewRelayService(
		cache,
		archiver,
		backend,
		destHintFor(cfg),
		services.RetryPolicy{Attempts: config.UploadMaxAttempts, Backoff: config.UploadRetryBackoff},
		hub,
		queue,
		sender,
		clock,
		logger,
		cfg.DownloadDir,
	)
	if err != nil {
		return err
	}

	if chat, ok := backend.(ports.ChatSender); ok && cfg.LarkChatID != "" {
		relay.NotifyChat(chat, cfg.LarkChatID)
	}

	sweeper, err := services.NewRetentionSweeper(storage, cache, clock, logger,
		adapters.NewGopsutilSystemInfo(), config.ArchiveMaxAge)
	if err != nil {
		return err
	}
	go sweeper.Run(ctx, config.CacheSweepEvery, config.ArchiveSweepEvery)

	handler, err := api.NewHandler(cache, relay, storage, hub, logger, cfg.DownloadDir)
	if err != nil {
		return err
	}

	router := api.NewRouter(handler)

	logger.Info("starting relay server", "port", cfg.Port, "backend", cfg.Backend, "download_dir", cfg.DownloadDir)

	return router.Run(fmt.Sprintf(":%d", cfg.Port))
}

// buildBackend constructs the configured upload backend
func buildBackend(ctx context.Context, cfg *config.Config, clock ports.Clock, logger ports.Logger) (ports.Uploader, error) {
	switch cfg.Backend {
	case config.BackendLark:
		return adapters.NewLarkBackend(cfg.LarkBaseURL, cfg.LarkAppID, cfg.LarkAppSecret, cfg.LarkFolderToken, clock, logger)
	case config.BackendDrive:
		return adapters.NewDriveBackend(ctx, cfg.GoogleCredentialsPath, cfg.GoogleTokenPath, cfg.GoogleDriveFolderID, logger)
	case config.BackendRclone:
		executor := adapters.NewCommandExecutorAdapter()
		return adapters.NewRcloneBackend(executor, cfg.RcloneCmd, cfg.RcloneRemoteBase, cfg.RcloneExtraArgs, logger)
	case config.BackendS3:
		return adapters.NewS3Backend(ctx, cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3KeyPrefix, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// destHintFor picks the per-backend upload destination
func destHintFor(cfg *config.Config) string {
	switch cfg.Backend {
	case config.BackendLark:
		return cfg.LarkFolderToken
	case config.BackendDrive:
		return cfg.GoogleDriveFolderID
	case config.BackendS3:
		return cfg.S3KeyPrefix
	default:
		return ""
	}
}

// buildLogger writes text logs to stdout and, when configured, to a
// size-rotated log file
func buildLogger(cfg *config.Config) ports.Logger {
	var w io.Writer = os.Stdout
	if cfg.LogFile != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	return adapters.NewSlogLoggerWithWriter(w, slog.LevelInfo)
}
