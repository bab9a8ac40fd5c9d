package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/hoanghieutb97/server-downfilein/internal/config"
	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// S3Uploader error constants
var (
	ErrS3ClientNil   = errors.New("S3 client cannot be nil")
	ErrS3BucketEmpty = errors.New("bucket cannot be empty")
)

// S3Client captures the subset of the AWS S3 client surface the upload
// manager needs, so tests can substitute a fake. Fakes handling only
// PutObject are enough for bodies below the part size.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// S3Backend streams artifacts to an S3-compatible bucket using the AWS
// upload manager with multipart uploads
type S3Backend struct {
	client    S3Client
	uploader  *manager.Uploader
	bucket    string
	keyPrefix string
	logger    ports.Logger
}

var (
	_ ports.Uploader         = (*S3Backend)(nil)
	_ ports.ProgressUploader = (*S3Backend)(nil)
)

// NewS3Backend creates an S3Backend from static credentials. endpoint
// may point at any S3-compatible service (R2, MinIO).
func NewS3Backend(ctx context.Context, endpoint, region, bucket, accessKeyID, secretAccessKey, keyPrefix string, logger ports.Logger) (*S3Backend, error) {
	if bucket == "" {
		return nil, ErrS3BucketEmpty
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return NewS3BackendWithClient(client, bucket, keyPrefix, logger)
}

// NewS3BackendWithClient creates an S3Backend over an existing client.
// Uses 5 MB part size and sequential uploads to minimize memory usage.
func NewS3BackendWithClient(client S3Client, bucket, keyPrefix string, logger ports.Logger) (*S3Backend, error) {
	if client == nil {
		return nil, ErrS3ClientNil
	}
	if bucket == "" {
		return nil, ErrS3BucketEmpty
	}
	if logger == nil {
		logger = NewNopLogger()
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = appconfig.S3PartSize
		u.Concurrency = appconfig.S3Concurrency
	})

	return &S3Backend{
		client:    client,
		uploader:  uploader,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		logger:    logger,
	}, nil
}

// Upload streams localPath to the bucket without progress reporting
func (b *S3Backend) Upload(ctx context.Context, localPath string, name string, destHint string) (*domain.UploadResult, error) {
	return b.UploadWithProgress(ctx, localPath, name, destHint, nil)
}

// UploadWithProgress streams localPath to the bucket as a multipart
// upload, reporting byte progress as the manager consumes the file.
// destHint overrides the configured key prefix.
func (b *S3Backend) UploadWithProgress(ctx context.Context, localPath string, name string, destHint string, onProgress ports.ProgressFunc) (*domain.UploadResult, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload source %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload source %s: %w", localPath, err)
	}

	prefix := b.keyPrefix
	if destHint != "" {
		prefix = destHint
	}
	key := path.Join(prefix, name)

	b.logger.Info("starting s3 upload", "key", key, "size_mb", fmt.Sprintf("%.2f", float64(info.Size())/(1024*1024)))

	reader := newUploadProgressReader(file, info.Size(), onProgress)

	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   reader,
	})
	if err != nil {
		return nil, ports.Transient(fmt.Errorf("failed to upload %s: %w", key, err))
	}

	b.logger.Info("s3 upload completed", "key", key)

	return &domain.UploadResult{
		RemoteID: key,
		Name:     name,
		Extra:    map[string]string{"bucket": b.bucket},
	}, nil
}

// uploadProgressReader wraps a reader and reports bytes consumed
type uploadProgressReader struct {
	reader     io.Reader
	total      int64
	bytesRead  int64
	onProgress ports.ProgressFunc
}

func newUploadProgressReader(r io.Reader, total int64, onProgress ports.ProgressFunc) *uploadProgressReader {
	return &uploadProgressReader{
		reader:     r,
		total:      total,
		onProgress: onProgress,
	}
}

func (pr *uploadProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		read := atomic.AddInt64(&pr.bytesRead, int64(n))
		if pr.onProgress != nil {
			pr.onProgress(read, pr.total)
		}
	}
	return n, err
}
