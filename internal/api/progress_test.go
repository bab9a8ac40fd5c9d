package api

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoanghieutb97/server-downfilein/internal/config"
	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

func TestProgressHub(t *testing.T) {
	t.Run("routes events to the right session", func(t *testing.T) {
		hub := NewProgressHub(nil)
		chA := hub.Subscribe("a")
		chB := hub.Subscribe("b")

		hub.Publish("a", ports.StageEvent{Stage: domain.StageCompressing, Message: "working", Percent: 10})

		msg := <-chA
		assert.Equal(t, "compressing", msg.Stage)
		assert.Equal(t, "working", msg.Message)
		assert.Equal(t, 10, msg.Progress)
		assert.Empty(t, chB)
	})

	t.Run("publishing to an unknown session is a no-op", func(t *testing.T) {
		hub := NewProgressHub(nil)
		assert.NotPanics(t, func() {
			hub.Publish("ghost", ports.StageEvent{Stage: domain.StageStart})
		})
	})

	t.Run("a full subscriber drops samples instead of blocking", func(t *testing.T) {
		hub := NewProgressHub(nil)
		hub.Subscribe("slow")

		for i := 0; i < config.ProgressBufferSize+10; i++ {
			hub.Publish("slow", ports.StageEvent{Stage: domain.StageCompressing, Percent: i})
		}
		// Reaching here without deadlock is the assertion
	})

	t.Run("unsubscribe closes the channel", func(t *testing.T) {
		hub := NewProgressHub(nil)
		ch := hub.Subscribe("a")
		hub.Unsubscribe("a")

		_, open := <-ch
		assert.False(t, open)
		assert.Equal(t, 0, hub.Subscribers())
	})

	t.Run("resubscribing replaces the previous channel", func(t *testing.T) {
		hub := NewProgressHub(nil)
		old := hub.Subscribe("a")
		fresh := hub.Subscribe("a")

		_, open := <-old
		assert.False(t, open)

		hub.Publish("a", ports.StageEvent{Stage: domain.StageStart})
		msg := <-fresh
		assert.Equal(t, "start", msg.Stage)
	})
}

func TestProgressHubConcurrentLifecycle(t *testing.T) {
	// A subscriber tearing down while a job publishes must never panic
	// the publishing goroutine
	hub := NewProgressHub(nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Publish("session-1", ports.StageEvent{Stage: domain.StageCompressing, Percent: 10})
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		hub.Subscribe("session-1")
		hub.Unsubscribe("session-1")
	}

	close(stop)
	wg.Wait()
	assert.Zero(t, hub.Subscribers())
}

func TestToMessage(t *testing.T) {
	t.Run("completed event carries the result at 100", func(t *testing.T) {
		result := &domain.UploadResult{RemoteID: "r-1", ViewLink: "https://x/1"}
		msg := toMessage(ports.CompletedEvent{Message: "done", Result: result})

		assert.Equal(t, "completed", msg.Stage)
		assert.Equal(t, 100, msg.Progress)
		require.NotNil(t, msg.Result)
		assert.Equal(t, "r-1", msg.Result.RemoteID)
	})

	t.Run("error event carries the failure text", func(t *testing.T) {
		msg := toMessage(ports.ErrorEvent{Stage: domain.StageUploading, Err: errors.New("boom")})
		assert.Equal(t, "error", msg.Stage)
		assert.Equal(t, "boom", msg.Message)
	})

	t.Run("nil error is tolerated", func(t *testing.T) {
		msg := toMessage(ports.ErrorEvent{Stage: domain.StageUploading})
		assert.Equal(t, "error", msg.Stage)
		assert.Empty(t, msg.Message)
	})
}
