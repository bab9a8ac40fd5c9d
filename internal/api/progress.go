package api

import (
	"sync"

	"github.com/hoanghieutb97/server-downfilein/internal/config"
	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// ProgressMessage is the wire form of a job progress event
type ProgressMessage struct {
	Stage    string               `json:"stage"`
	Message  string               `json:"message,omitempty"`
	Progress int                  `json:"progress"`
	Result   *domain.UploadResult `json:"result,omitempty"`
}

// ProgressHub routes job events to per-session subscribers. Publishing
// to a session nobody subscribed to is a no-op, and a subscriber that
// cannot keep up loses intermediate samples rather than blocking the
// job.
type ProgressHub struct {
	logger ports.Logger

	mu       sync.RWMutex
	sessions map[string]chan ProgressMessage
}

var _ ports.ProgressPublisher = (*ProgressHub)(nil)

// NewProgressHub creates a new ProgressHub
func NewProgressHub(logger ports.Logger) *ProgressHub {
	if logger == nil {
		logger = &nopLogger{}
	}

	return &ProgressHub{
		logger:   logger,
		sessions: make(map[string]chan ProgressMessage),
	}
}

// Subscribe registers a subscriber for sessionID and returns its event
// channel. A second subscription for the same id replaces the first.
func (h *ProgressHub) Subscribe(sessionID string) <-chan ProgressMessage {
	ch := make(chan ProgressMessage, config.ProgressBufferSize)

	h.mu.Lock()
	if old, ok := h.sessions[sessionID]; ok {
		close(old)
	}
	h.sessions[sessionID] = ch
	h.mu.Unlock()

	return ch
}

// Unsubscribe removes the subscriber for sessionID and closes its
// channel
func (h *ProgressHub) Unsubscribe(sessionID string) {
	h.mu.Lock()
	if ch, ok := h.sessions[sessionID]; ok {
		close(ch)
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
}

// Publish delivers evt to the subscriber for sessionID, if any. The
// send happens under the read lock: Subscribe and Unsubscribe close
// channels under the write lock, so a channel can never be closed
// while a send to it is in flight. The send itself never blocks.
func (h *ProgressHub) Publish(sessionID string, evt ports.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, ok := h.sessions[sessionID]
	if !ok {
		return
	}

	msg := toMessage(evt)

	select {
	case ch <- msg:
	default:
		h.logger.Debug("dropping progress sample for slow subscriber", "session_id", sessionID, "stage", msg.Stage)
	}
}

// Subscribers returns the number of active sessions
func (h *ProgressHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func toMessage(evt ports.Event) ProgressMessage {
	switch e := evt.(type) {
	case ports.StageEvent:
		return ProgressMessage{
			Stage:    string(e.Stage),
			Message:  e.Message,
			Progress: e.Percent,
		}
	case ports.CompletedEvent:
		return ProgressMessage{
			Stage:    string(domain.StageCompleted),
			Message:  e.Message,
			Progress: 100,
			Result:   e.Result,
		}
	case ports.ErrorEvent:
		msg := ProgressMessage{Stage: string(domain.StageError)}
		if e.Err != nil {
			msg.Message = e.Err.Error()
		}
		return msg
	default:
		return ProgressMessage{}
	}
}

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}
func (nopLogger) Debug(msg string, args ...any) {}
