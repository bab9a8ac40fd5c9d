package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports/mocks"
)

type larkServer struct {
	*httptest.Server
	tokenRequests int64
	uploadLength  int64
	shareFails    bool
}

func newLarkServer(t *testing.T) *larkServer {
	t.Helper()
	ls := &larkServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/open-apis/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&ls.tokenRequests, 1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["app_id"] != "app-1" || body["app_secret"] != "secret-1" {
			fmt.Fprint(w, `{"code":99991663,"msg":"invalid credentials"}`)
			return
		}
		fmt.Fprint(w, `{"code":0,"msg":"ok","tenant_access_token":"tok-1","expire":7200}`)
	})
	mux.HandleFunc("/open-apis/drive/v1/files/upload_all", func(w http.ResponseWriter, r *http.Request) {
		atomic.StoreInt64(&ls.uploadLength, r.ContentLength)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "explorer", r.FormValue("parent_type"))
		assert.NotEmpty(t, r.FormValue("file_name"))
		fmt.Fprint(w, `{"code":0,"msg":"ok","data":{"file_token":"filetok-1"}}`)
	})
	mux.HandleFunc("/open-apis/drive/v2/permissions/filetok-1/public", func(w http.ResponseWriter, r *http.Request) {
		if ls.shareFails {
			fmt.Fprint(w, `{"code":1061004,"msg":"forbidden"}`)
			return
		}
		fmt.Fprint(w, `{"code":0,"msg":"ok","data":{}}`)
	})
	mux.HandleFunc("/open-apis/drive/v1/files/create_folder", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprintf(w, `{"code":0,"msg":"ok","data":{"token":"foldertok-1","url":"https://drive/foldertok-1"}}`)
	})
	mux.HandleFunc("/open-apis/im/v1/files", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "stream", r.FormValue("file_type"))
		fmt.Fprint(w, `{"code":0,"msg":"ok","data":{"file_key":"filekey-1"}}`)
	})
	mux.HandleFunc("/open-apis/im/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "chat_id", r.URL.Query().Get("receive_id_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "file", body["msg_type"])
		fmt.Fprint(w, `{"code":0,"msg":"ok","data":{"message_id":"msg-1"}}`)
	})

	ls.Server = httptest.NewServer(mux)
	t.Cleanup(ls.Close)
	return ls
}

func newTestLarkBackend(t *testing.T, server *larkServer, clock ports.Clock) *LarkBackend {
	t.Helper()
	backend, err := NewLarkBackend(server.URL, "app-1", "secret-1", "folder-1", clock, nil)
	require.NoError(t, err)
	return backend
}

func writeTempArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(path, []byte("zip-bytes"), 0644))
	return path
}

func TestLarkUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads and shares the file", func(t *testing.T) {
		server := newLarkServer(t)
		backend := newTestLarkBackend(t, server, mocks.NewMockClock(time.Now()))

		result, err := backend.Upload(ctx, writeTempArtifact(t), "a.zip", "")
		require.NoError(t, err)
		assert.Equal(t, "filetok-1", result.RemoteID)
		assert.Equal(t, server.URL+"/drive/file/filetok-1", result.ViewLink)
		assert.Equal(t, "folder-1", result.Extra["parent_node"])
	})

	t.Run("body is streamed, not buffered with a length", func(t *testing.T) {
		server := newLarkServer(t)
		backend := newTestLarkBackend(t, server, mocks.NewMockClock(time.Now()))

		_, err := backend.Upload(ctx, writeTempArtifact(t), "a.zip", "")
		require.NoError(t, err)

		// Chunked transfer reports an unknown length server-side
		assert.Equal(t, int64(-1), atomic.LoadInt64(&server.uploadLength))
	})

	t.Run("share failure never fails the upload", func(t *testing.T) {
		server := newLarkServer(t)
		server.shareFails = true
		backend := newTestLarkBackend(t, server, mocks.NewMockClock(time.Now()))

		result, err := backend.Upload(ctx, writeTempArtifact(t), "a.zip", "")
		require.NoError(t, err)
		assert.Equal(t, "filetok-1", result.RemoteID)
		assert.Empty(t, result.ViewLink)
	})

	t.Run("bad credentials are not transient", func(t *testing.T) {
		server := newLarkServer(t)
		backend, err := NewLarkBackend(server.URL, "app-1", "wrong", "folder-1", mocks.NewMockClock(time.Now()), nil)
		require.NoError(t, err)

		_, err = backend.Upload(ctx, writeTempArtifact(t), "a.zip", "")
		assert.ErrorIs(t, err, ports.ErrCredentials)
		assert.False(t, ports.IsTransient(err))
	})
}

func TestLarkTokenCaching(t *testing.T) {
	ctx := context.Background()
	server := newLarkServer(t)
	clock := mocks.NewMockClock(time.Now())
	backend := newTestLarkBackend(t, server, clock)

	_, err := backend.Upload(ctx, writeTempArtifact(t), "a.zip", "")
	require.NoError(t, err)
	_, err = backend.Upload(ctx, writeTempArtifact(t), "b.zip", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&server.tokenRequests))

	// Within the refresh margin of expiry a fresh token is fetched
	clock.Advance(7200*time.Second - 30*time.Second)
	_, err = backend.Upload(ctx, writeTempArtifact(t), "c.zip", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&server.tokenRequests))
}

func TestLarkCreateFolder(t *testing.T) {
	server := newLarkServer(t)
	backend := newTestLarkBackend(t, server, mocks.NewMockClock(time.Now()))

	folder, err := backend.CreateFolder(context.Background(), "reports", "")
	require.NoError(t, err)
	assert.Equal(t, "foldertok-1", folder.ID)
	assert.Equal(t, "reports", folder.Name)
}

func TestLarkSendToChat(t *testing.T) {
	server := newLarkServer(t)
	backend := newTestLarkBackend(t, server, mocks.NewMockClock(time.Now()))

	t.Run("uploads then posts the message", func(t *testing.T) {
		ref, err := backend.SendToChat(context.Background(), writeTempArtifact(t), "a.zip", "chat-1")
		require.NoError(t, err)
		assert.Equal(t, "msg-1", ref.MessageID)
		assert.Equal(t, "filekey-1", ref.FileKey)
		assert.Equal(t, "chat-1", ref.ChatID)
	})

	t.Run("empty chat id is rejected", func(t *testing.T) {
		_, err := backend.SendToChat(context.Background(), writeTempArtifact(t), "a.zip", "")
		assert.Error(t, err)
	})
}
