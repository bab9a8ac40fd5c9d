package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Upload backend identifiers
const (
	BackendLark   = "lark"
	BackendDrive  = "drive"
	BackendRclone = "rclone"
	BackendS3     = "s3"
)

// File-info cache and retention timing
const (
	FileCacheTTL      = 30 * time.Second
	CacheSweepEvery   = 2 * time.Minute
	ArchiveSweepEvery = 24 * time.Hour
	ArchiveMaxAge     = 24 * time.Hour
)

// Archive builder tuning
const (
	ArchiveExtension    = ".zip"
	EntryYieldDelay     = 10 * time.Millisecond
	ProgressMinStep     = 1 // percentage points between progress emissions
	ProgressMinInterval = 2 * time.Second
)

// Upload retry policy (bounded retry with fixed backoff)
const (
	UploadMaxAttempts  = 5
	UploadRetryBackoff = 5 * time.Second
)

// Cloud-drive upload strategy thresholds
const (
	DriveLargeFileThreshold = 5 * 1024 * 1024  // above: single large-file request
	DriveResumableThreshold = 10 * 1024 * 1024 // above: chunked resumable session
	DriveChunkSize          = 256 * 1024       // 256 KiB resumable chunks
)

// Tenant token caching
const (
	TokenRefreshMargin = 60 * time.Second
)

// S3/R2 streaming upload
const (
	S3PartSize    = 5 * 1024 * 1024 // 5 MB parts for multipart upload
	S3Concurrency = 1               // sequential upload to minimize memory
)

// Progress channel tuning
const (
	ProgressBufferSize = 64
	SSEKeepAlive       = 30 * time.Second
)

// Config holds all runtime configuration loaded from the environment.
type Config struct {
	Port        int
	DownloadDir string
	Backend     string

	LarkAppID       string
	LarkAppSecret   string
	LarkFolderToken string
	LarkBaseURL     string
	LarkChatID      string

	GoogleCredentialsPath string
	GoogleTokenPath       string
	GoogleDriveFolderID   string

	RcloneCmd        string
	RcloneRemoteBase string
	RcloneExtraArgs  []string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3KeyPrefix string

	SenderCmd  string
	SenderArgs []string

	LogFile string
}

// Load reads configuration from a .env file (if present) and the process
// environment. Every option has a working default except backend credentials.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using environment variables only")
	}

	port, err := getEnvInt("PORT", 7001)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        port,
		DownloadDir: getEnv("DOWNLOAD_DIR", "downloads"),
		Backend:     strings.ToLower(getEnv("UPLOAD_BACKEND", BackendLark)),

		LarkAppID:       getEnv("LARK_APP_ID", ""),
		LarkAppSecret:   getEnv("LARK_APP_SECRET", ""),
		LarkFolderToken: getEnv("LARK_FOLDER_TOKEN", ""),
		LarkBaseURL:     getEnv("LARK_BASE_URL", "https://open.feishu.cn"),
		LarkChatID:      getEnv("LARK_CHAT_ID", ""),

		GoogleCredentialsPath: getEnv("GOOGLE_CREDENTIALS_PATH", "credentials.json"),
		GoogleTokenPath:       getEnv("GOOGLE_TOKEN_PATH", "token.json"),
		GoogleDriveFolderID:   getEnv("GOOGLE_DRIVE_FOLDER_ID", ""),

		RcloneCmd:        getEnv("RCLONE_CMD", "rclone"),
		RcloneRemoteBase: getEnv("RCLONE_REMOTE_BASE", "drive_remote:uploads"),
		RcloneExtraArgs:  getEnvList("RCLONE_EXTRA_ARGS", defaultRcloneArgs),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "auto"),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3KeyPrefix: getEnv("S3_KEY_PREFIX", "uploads"),

		SenderCmd:  getEnv("SENDER_CMD", "python"),
		SenderArgs: getEnvList("SENDER_ARGS", []string{"sendlark.py"}),

		LogFile: getEnv("LOG_FILE", ""),
	}

	switch cfg.Backend {
	case BackendLark, BackendDrive, BackendRclone, BackendS3:
	default:
		return nil, fmt.Errorf("unknown UPLOAD_BACKEND %q", cfg.Backend)
	}

	return cfg, nil
}

var defaultRcloneArgs = []string{
	"--progress",
	"--stats=10s",
	"--transfers=8",
	"--checkers=8",
	"--drive-chunk-size=256M",
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.Fields(value)
}
