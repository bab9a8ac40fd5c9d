package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hoanghieutb97/server-downfilein/internal/config"
	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

const driveScope = "https://www.googleapis.com/auth/drive.file"

// DriveBackend uploads artifacts to Google Drive. The upload strategy
// depends on file size: small files go up in a single multipart
// request, mid-sized files in a single resumable session, and large
// files in fixed-size resumable chunks so progress can be reported.
type DriveBackend struct {
	httpClient *http.Client
	uploadURL  string
	folderID   string
	logger     ports.Logger

	largeThreshold     int64
	resumableThreshold int64
	chunkSize          int64
}

var (
	_ ports.Uploader         = (*DriveBackend)(nil)
	_ ports.ProgressUploader = (*DriveBackend)(nil)
)

// NewDriveBackend creates a DriveBackend from OAuth installed-app
// credentials and a previously saved user token
func NewDriveBackend(ctx context.Context, credentialsPath, tokenPath, folderID string, logger ports.Logger) (*DriveBackend, error) {
	credentials, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read credentials file %s: %v", ports.ErrCredentials, credentialsPath, err)
	}

	oauthConfig, err := google.ConfigFromJSON(credentials, driveScope)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse credentials: %v", ports.ErrCredentials, err)
	}

	tokenData, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read token file %s: %v", ports.ErrCredentials, tokenPath, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("%w: failed to parse token: %v", ports.ErrCredentials, err)
	}

	client := oauthConfig.Client(ctx, &token)
	client.Timeout = 30 * time.Minute

	return NewDriveBackendWithClient(client, "https://www.googleapis.com", folderID, logger), nil
}

// NewDriveBackendWithClient creates a DriveBackend over an existing
// authenticated client and API base URL
func NewDriveBackendWithClient(client *http.Client, uploadURL, folderID string, logger ports.Logger) *DriveBackend {
	if logger == nil {
		logger = NewNopLogger()
	}

	return &DriveBackend{
		httpClient:         client,
		uploadURL:          uploadURL,
		folderID:           folderID,
		logger:             logger,
		largeThreshold:     config.DriveLargeFileThreshold,
		resumableThreshold: config.DriveResumableThreshold,
		chunkSize:          config.DriveChunkSize,
	}
}

// Upload sends localPath to Drive without progress reporting
func (d *DriveBackend) Upload(ctx context.Context, localPath string, name string, destHint string) (*domain.UploadResult, error) {
	return d.UploadWithProgress(ctx, localPath, name, destHint, nil)
}

// UploadWithProgress sends localPath to Drive, reporting byte progress
// when the chunked strategy is in play. destHint overrides the
// configured parent folder id.
func (d *DriveBackend) UploadWithProgress(ctx context.Context, localPath string, name string, destHint string, onProgress ports.ProgressFunc) (*domain.UploadResult, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload source %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload source %s: %w", localPath, err)
	}

	folder := d.folderID
	if destHint != "" {
		folder = destHint
	}

	size := info.Size()
	switch {
	case size < d.largeThreshold:
		d.logger.Debug("using multipart upload", "name", name, "size", size)
		return d.uploadMultipart(ctx, file, name, folder, size, onProgress)
	case size < d.resumableThreshold:
		d.logger.Debug("using single resumable upload", "name", name, "size", size)
		return d.uploadResumable(ctx, file, name, folder, size, size, onProgress)
	default:
		d.logger.Debug("using chunked resumable upload", "name", name, "size", size)
		return d.uploadResumable(ctx, file, name, folder, size, d.chunkSize, onProgress)
	}
}

func (d *DriveBackend) metadata(name, folder string) map[string]any {
	meta := map[string]any{"name": name}
	if folder != "" {
		meta["parents"] = []string{folder}
	}
	return meta
}

// uploadMultipart sends metadata and content in one multipart/related
// request
func (d *DriveBackend) uploadMultipart(ctx context.Context, file io.Reader, name, folder string, size int64, onProgress ports.ProgressFunc) (*domain.UploadResult, error) {
	meta, err := json.Marshal(d.metadata(name, folder))
	if err != nil {
		return nil, fmt.Errorf("failed to encode file metadata: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata part: %w", err)
	}
	if _, err := metaPart.Write(meta); err != nil {
		return nil, fmt.Errorf("failed to write metadata part: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", "application/zip")
	mediaPart, err := writer.CreatePart(mediaHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create media part: %w", err)
	}
	if _, err := io.Copy(mediaPart, file); err != nil {
		return nil, fmt.Errorf("failed to buffer upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := d.uploadURL + "/upload/drive/v3/files?uploadType=multipart&fields=id,name,webViewLink"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	result, err := d.decodeFileResponse(req)
	if err != nil {
		return nil, err
	}

	if onProgress != nil {
		onProgress(size, size)
	}

	return result, nil
}

// uploadResumable opens a resumable session and streams the content in
// chunkSize pieces, reporting progress after each confirmed chunk
func (d *DriveBackend) uploadResumable(ctx context.Context, file io.Reader, name, folder string, size, chunkSize int64, onProgress ports.ProgressFunc) (*domain.UploadResult, error) {
	sessionURL, err := d.startSession(ctx, name, folder, size)
	if err != nil {
		return nil, err
	}

	var sent int64
	buf := make([]byte, chunkSize)
	for sent < size {
		n, err := io.ReadFull(file, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("failed to read upload source: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("upload source truncated at %d of %d bytes", sent, size)
		}

		end := sent + int64(n) - 1
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, bytes.NewReader(buf[:n]))
		if err != nil {
			return nil, fmt.Errorf("failed to build chunk request: %w", err)
		}
		req.Header.Set("Content-Length", strconv.Itoa(n))
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", sent, end, size))

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return nil, ports.Transient(fmt.Errorf("chunk upload failed: %w", err))
		}

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			sent += int64(n)
			if onProgress != nil {
				onProgress(sent, size)
			}
			return d.decodeFileBody(resp)
		case resp.StatusCode == 308:
			// 308 Resume Incomplete: the chunk landed, keep going
			resp.Body.Close()
			sent += int64(n)
			if onProgress != nil {
				onProgress(sent, size)
			}
		case resp.StatusCode >= http.StatusInternalServerError:
			resp.Body.Close()
			return nil, ports.Transient(fmt.Errorf("server returned status %d at byte %d", resp.StatusCode, sent))
		default:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("chunk rejected with status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}
	}

	return nil, fmt.Errorf("resumable session ended without a final response")
}

// startSession initiates a resumable upload and returns the session URI
func (d *DriveBackend) startSession(ctx context.Context, name, folder string, size int64) (string, error) {
	meta, err := json.Marshal(d.metadata(name, folder))
	if err != nil {
		return "", fmt.Errorf("failed to encode file metadata: %w", err)
	}

	url := d.uploadURL + "/upload/drive/v3/files?uploadType=resumable&fields=id,name,webViewLink"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(meta))
	if err != nil {
		return "", fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", "application/zip")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", ports.Transient(fmt.Errorf("session request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", ports.Transient(fmt.Errorf("server returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("session rejected with status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("session response missing Location header")
	}

	return sessionURL, nil
}

func (d *DriveBackend) decodeFileResponse(req *http.Request) (*domain.UploadResult, error) {
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, ports.Transient(fmt.Errorf("upload request failed: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		resp.Body.Close()
		return nil, ports.Transient(fmt.Errorf("server returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return d.decodeFileBody(resp)
}

func (d *DriveBackend) decodeFileBody(resp *http.Response) (*domain.UploadResult, error) {
	defer resp.Body.Close()

	var created struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		WebViewLink string `json:"webViewLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	return &domain.UploadResult{
		RemoteID: created.ID,
		Name:     created.Name,
		ViewLink: created.WebViewLink,
	}, nil
}
