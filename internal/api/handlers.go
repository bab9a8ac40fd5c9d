package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hoanghieutb97/server-downfilein/internal/config"
	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
	"github.com/hoanghieutb97/server-downfilein/internal/core/services"
)

// Handler owns the HTTP surface of the relay server
type Handler struct {
	files       *services.FileInfoCache
	relay       *services.RelayService
	storage     ports.StorageRepository
	hub         *ProgressHub
	logger      ports.Logger
	downloadDir string
}

// NewHandler creates a new Handler
func NewHandler(
	files *services.FileInfoCache,
	relay *services.RelayService,
	storage ports.StorageRepository,
	hub *ProgressHub,
	logger ports.Logger,
	downloadDir string,
) (*Handler, error) {
	if files == nil {
		return nil, errors.New("file info cache cannot be nil")
	}
	if relay == nil {
		return nil, errors.New("relay service cannot be nil")
	}
	if storage == nil {
		return nil, errors.New("storage repository cannot be nil")
	}
	if hub == nil {
		return nil, errors.New("progress hub cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if downloadDir == "" {
		return nil, errors.New("download directory cannot be empty")
	}

	return &Handler{
		files:       files,
		relay:       relay,
		storage:     storage,
		hub:         hub,
		logger:      logger,
		downloadDir: downloadDir,
	}, nil
}

// ListFolder returns the entries of a directory on the host
func (h *Handler) ListFolder(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter is required"})
		return
	}

	resolved := h.files.Resolve(path)
	entries, err := os.ReadDir(resolved)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			c.JSON(http.StatusNotFound, gin.H{"error": "path does not exist"})
		case os.IsPermission(err):
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	listings := make([]domain.Listing, 0, len(entries))
	for _, entry := range entries {
		listings = append(listings, domain.Listing{
			Name:  entry.Name(),
			IsDir: entry.IsDir(),
		})
	}

	c.JSON(http.StatusOK, listings)
}

// ListDownloads returns the locally retained archives
func (h *Handler) ListDownloads(c *gin.Context) {
	keys, err := h.storage.List(c.Request.Context(), "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	downloads := make([]domain.DownloadEntry, 0, len(keys))
	for _, key := range keys {
		info, err := h.storage.Stat(c.Request.Context(), key)
		if err != nil {
			h.logger.Warn("Cannot stat retained archive", "key", key, "error", err)
			continue
		}
		downloads = append(downloads, domain.DownloadEntry{
			Name:    key,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			URL:     "/downloads/" + key,
		})
	}

	c.JSON(http.StatusOK, downloads)
}

// ServeDownload streams a retained archive back to the client
func (h *Handler) ServeDownload(c *gin.Context) {
	name := sanitize(c.Param("name"))
	if name == "." || name == string(filepath.Separator) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		return
	}

	if _, err := h.storage.Stat(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.FileAttachment(filepath.Join(h.downloadDir, name), name)
}

// DeleteFile removes a retained archive
func (h *Handler) DeleteFile(c *gin.Context) {
	name := sanitize(c.Param("name"))
	if name == "." || name == string(filepath.Separator) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		return
	}

	if err := h.storage.Delete(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "name": name})
}

type zipRequest struct {
	Selected  []string `json:"selected" binding:"required"`
	RootPath  string   `json:"rootPath"`
	SessionID string   `json:"sessionId"`
}

// DownloadZipTree archives the selection and uploads it through the
// configured backend, streaming progress over the session's SSE channel
func (h *Handler) DownloadZipTree(c *gin.Context) {
	var req zipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	// A client disconnect must not cancel a job already in flight
	ctx := context.WithoutCancel(c.Request.Context())

	result, zipName, err := h.relay.RunJob(ctx, req.Selected, req.RootPath, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrJobSelectionEmpty) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "selection cannot be empty"})
			return
		}

		resp := gin.H{
			"error":   "upload failed",
			"details": err.Error(),
		}
		// A complete artifact may still exist locally; offer it as a
		// fallback. A failed build leaves only partial output behind.
		if !errors.Is(err, services.ErrArchiveFailed) {
			resp["downloadUrl"] = "/downloads/" + zipName
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"details":     result,
		"downloadUrl": result.ViewLink,
	})
}

type zipSendRequest struct {
	Selected []string `json:"selected" binding:"required"`
	RootPath string   `json:"rootPath"`
}

// ZipAndSendLark archives the selection and hands the artifact to the
// serialized delegate sender
func (h *Handler) ZipAndSendLark(c *gin.Context) {
	var req zipSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	zipName, zipPath, err := h.relay.ZipAndSend(context.WithoutCancel(c.Request.Context()), req.Selected, req.RootPath)
	if err != nil {
		if errors.Is(err, services.ErrRelayNoSender) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no sender configured"})
			return
		}
		if errors.Is(err, domain.ErrJobSelectionEmpty) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "selection cannot be empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"zipName": zipName,
		"zipPath": zipPath,
	})
}

// Progress streams job progress for a session as server-sent events.
// The stream ends after a terminal event or when the client disconnects;
// a disconnect never affects the running job.
func (h *Handler) Progress(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
		return
	}

	events := h.hub.Subscribe(sessionID)
	defer h.hub.Unsubscribe(sessionID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	keepalive := time.NewTicker(config.SSEKeepAlive)
	defer keepalive.Stop()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent("message", msg)
			c.Writer.Flush()
			if terminalStage(msg.Stage) {
				return
			}
		case <-keepalive.C:
			if _, err := c.Writer.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func terminalStage(stage string) bool {
	return stage == string(domain.StageCompleted) || stage == string(domain.StageError)
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// sanitize guards path parameters that gin may deliver with a leading
// slash
func sanitize(name string) string {
	return filepath.Base(strings.TrimPrefix(name, "/"))
}
