package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/hoanghieutb97/server-downfilein/internal/config"
	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

var (
	ErrLarkEmptyAppID  = fmt.Errorf("lark app id cannot be empty")
	ErrLarkEmptySecret = fmt.Errorf("lark app secret cannot be empty")
)

// LarkBackend uploads artifacts to Lark Drive and can post them into a
// chat. Tenant access tokens are cached and refreshed shortly before
// they expire.
type LarkBackend struct {
	httpClient  *http.Client
	baseURL     string
	appID       string
	appSecret   string
	folderToken string
	clock       ports.Clock
	logger      ports.Logger

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

var (
	_ ports.Uploader      = (*LarkBackend)(nil)
	_ ports.FolderCreator = (*LarkBackend)(nil)
	_ ports.ChatSender    = (*LarkBackend)(nil)
)

// NewLarkBackend creates a new LarkBackend
func NewLarkBackend(baseURL, appID, appSecret, folderToken string, clock ports.Clock, logger ports.Logger) (*LarkBackend, error) {
	if appID == "" {
		return nil, ErrLarkEmptyAppID
	}
	if appSecret == "" {
		return nil, ErrLarkEmptySecret
	}
	if baseURL == "" {
		baseURL = "https://open.feishu.cn"
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = NewNopLogger()
	}

	return &LarkBackend{
		httpClient:  &http.Client{Timeout: 10 * time.Minute},
		baseURL:     baseURL,
		appID:       appID,
		appSecret:   appSecret,
		folderToken: folderToken,
		clock:       clock,
		logger:      logger,
	}, nil
}

type larkEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type larkTokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// tenantToken returns a valid tenant access token, fetching a fresh one
// when the cached token is within the refresh margin of expiring
func (l *LarkBackend) tenantToken(ctx context.Context) (string, error) {
	l.tokenMu.Lock()
	defer l.tokenMu.Unlock()

	now := l.clock.Now()
	if l.token != "" && now.Before(l.tokenExpiry.Add(-config.TokenRefreshMargin)) {
		return l.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"app_id":     l.appID,
		"app_secret": l.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/open-apis/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", ports.Transient(fmt.Errorf("token request failed: %w", err))
	}
	defer resp.Body.Close()

	var tokenResp larkTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.Code != 0 {
		return "", fmt.Errorf("%w: tenant token rejected (code %d): %s", ports.ErrCredentials, tokenResp.Code, tokenResp.Msg)
	}

	l.token = tokenResp.TenantAccessToken
	l.tokenExpiry = now.Add(time.Duration(tokenResp.Expire) * time.Second)

	return l.token, nil
}

// Upload sends localPath to Lark Drive under the configured folder.
// destHint overrides the folder token when set. Making the file
// link-shareable is best effort: a failure there never fails the upload.
func (l *LarkBackend) Upload(ctx context.Context, localPath string, name string, destHint string) (*domain.UploadResult, error) {
	token, err := l.tenantToken(ctx)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload source %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload source %s: %w", localPath, err)
	}

	folder := l.folderToken
	if destHint != "" {
		folder = destHint
	}

	fields := map[string]string{
		"file_name":   name,
		"parent_type": "explorer",
		"parent_node": folder,
		"size":        strconv.FormatInt(info.Size(), 10),
	}
	body, contentType := multipartStream(fields, name, file)
	defer body.Close()

	data, err := l.call(ctx, http.MethodPost, "/open-apis/drive/v1/files/upload_all", token, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("drive upload failed: %w", err)
	}

	var uploaded struct {
		FileToken string `json:"file_token"`
	}
	if err := json.Unmarshal(data, &uploaded); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	result := &domain.UploadResult{
		RemoteID: uploaded.FileToken,
		Name:     name,
		Extra:    map[string]string{"parent_node": folder},
	}

	if link, err := l.shareFile(ctx, token, uploaded.FileToken); err != nil {
		l.logger.Warn("failed to make file link-shareable", "file_token", uploaded.FileToken, "error", err)
	} else {
		result.ViewLink = link
	}

	return result, nil
}

// shareFile enables tenant-wide link sharing for a drive file and
// returns its view URL
func (l *LarkBackend) shareFile(ctx context.Context, token, fileToken string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"external_access_entity": "open",
		"link_share_entity":      "tenant_readable",
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode permission request: %w", err)
	}

	path := fmt.Sprintf("/open-apis/drive/v2/permissions/%s/public?type=file", fileToken)
	if _, err := l.call(ctx, http.MethodPatch, path, token, "application/json", bytes.NewReader(body)); err != nil {
		return "", err
	}

	return l.baseURL + "/drive/file/" + fileToken, nil
}

// CreateFolder creates a sub-folder under parentHint (or the configured
// folder when parentHint is empty)
func (l *LarkBackend) CreateFolder(ctx context.Context, name string, parentHint string) (*domain.FolderRef, error) {
	token, err := l.tenantToken(ctx)
	if err != nil {
		return nil, err
	}

	parent := l.folderToken
	if parentHint != "" {
		parent = parentHint
	}

	body, err := json.Marshal(map[string]string{
		"name":         name,
		"folder_token": parent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode folder request: %w", err)
	}

	data, err := l.call(ctx, http.MethodPost, "/open-apis/drive/v1/files/create_folder", token, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("folder creation failed: %w", err)
	}

	var created struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("failed to decode folder response: %w", err)
	}

	return &domain.FolderRef{ID: created.Token, Name: name}, nil
}

// SendToChat uploads localPath as a message attachment and posts it into
// the given chat
func (l *LarkBackend) SendToChat(ctx context.Context, localPath string, name string, chatID string) (*domain.ChatMessageRef, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat id cannot be empty")
	}

	token, err := l.tenantToken(ctx)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload source %s: %w", localPath, err)
	}
	defer file.Close()

	fields := map[string]string{
		"file_type": "stream",
		"file_name": name,
	}
	body, contentType := multipartStream(fields, name, file)
	defer body.Close()

	data, err := l.call(ctx, http.MethodPost, "/open-apis/im/v1/files", token, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("message file upload failed: %w", err)
	}

	var uploaded struct {
		FileKey string `json:"file_key"`
	}
	if err := json.Unmarshal(data, &uploaded); err != nil {
		return nil, fmt.Errorf("failed to decode file upload response: %w", err)
	}

	content, err := json.Marshal(map[string]string{"file_key": uploaded.FileKey})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message content: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"receive_id": chatID,
		"msg_type":   "file",
		"content":    string(content),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message request: %w", err)
	}

	data, err = l.call(ctx, http.MethodPost, "/open-apis/im/v1/messages?receive_id_type=chat_id", token, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("message send failed: %w", err)
	}

	var sent struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(data, &sent); err != nil {
		return nil, fmt.Errorf("failed to decode message response: %w", err)
	}

	return &domain.ChatMessageRef{
		MessageID: sent.MessageID,
		FileKey:   uploaded.FileKey,
		ChatID:    chatID,
	}, nil
}

// multipartStream produces a multipart body fed through a pipe, so the
// artifact is streamed to the wire instead of buffered in memory. The
// returned reader must be closed; closing it also stops the writer
// goroutine if the request aborted early.
func multipartStream(fields map[string]string, fileName string, file io.Reader) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		for key, value := range fields {
			if err := writer.WriteField(key, value); err != nil {
				pw.CloseWithError(fmt.Errorf("failed to write multipart field %s: %w", key, err))
				return
			}
		}
		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("failed to create multipart file part: %w", err))
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(fmt.Errorf("failed to stream upload body: %w", err))
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	return pr, writer.FormDataContentType()
}

// call performs an authenticated API request and unwraps the standard
// response envelope. Server-side failures are marked transient.
func (l *LarkBackend) call(ctx context.Context, method, path, token, contentType string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, ports.Transient(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ports.Transient(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, ports.Transient(fmt.Errorf("server returned status %d", resp.StatusCode))
	}

	var envelope larkEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}
	if envelope.Code != 0 {
		return nil, fmt.Errorf("api error (code %d): %s", envelope.Code, envelope.Msg)
	}

	return envelope.Data, nil
}
