package mocks

import (
	"sync"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// MockProgressPublisher records every published event for assertion
type MockProgressPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

// PublishedEvent captures one Publish invocation
type PublishedEvent struct {
	SessionID string
	Event     ports.Event
}

// NewMockProgressPublisher creates a new recording publisher
func NewMockProgressPublisher() *MockProgressPublisher {
	return &MockProgressPublisher{}
}

// Publish records the event
func (m *MockProgressPublisher) Publish(sessionID string, evt ports.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{SessionID: sessionID, Event: evt})
}

// Events returns a copy of all recorded events
func (m *MockProgressPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Stages returns the stage of every recorded StageEvent plus terminal
// markers, in publish order
func (m *MockProgressPublisher) Stages() []domain.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stages []domain.Stage
	for _, rec := range m.events {
		switch e := rec.Event.(type) {
		case ports.StageEvent:
			stages = append(stages, e.Stage)
		case ports.CompletedEvent:
			stages = append(stages, domain.StageCompleted)
		case ports.ErrorEvent:
			stages = append(stages, domain.StageError)
		}
	}
	return stages
}

var _ ports.ProgressPublisher = (*MockProgressPublisher)(nil)
