package services

import (
	"errors"
	"sync"

	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// SerialQueue error constants
var (
	ErrQueueLoggerNil = errors.New("logger cannot be nil")
	ErrQueueNil       = errors.New("serial queue cannot be nil")
	ErrQueueJobNil    = errors.New("job cannot be nil")
)

type queuedJob struct {
	run  func() error
	done chan error
}

// SerialQueue runs submitted jobs strictly one at a time in arrival
// order. It exists for delegates that must never run concurrently with
// themselves (e.g. a subprocess-based sender). The queue is unbounded
// and FIFO; the busy flag prevents re-entrant dequeue while a job is
// active.
type SerialQueue struct {
	logger ports.Logger

	mu    sync.Mutex
	queue []queuedJob
	busy  bool
}

// NewSerialQueue creates an empty serial queue
func NewSerialQueue(logger ports.Logger) (*SerialQueue, error) {
	if logger == nil {
		return nil, ErrQueueLoggerNil
	}
	return &SerialQueue{logger: logger}, nil
}

// Do enqueues run and blocks until it has been executed. The result is
// whatever run returned. A failed job never stops the queue: the next
// job is dispatched regardless.
func (q *SerialQueue) Do(run func() error) error {
	if q == nil {
		return ErrQueueNil
	}
	if run == nil {
		return ErrQueueJobNil
	}

	job := queuedJob{run: run, done: make(chan error, 1)}

	q.mu.Lock()
	q.queue = append(q.queue, job)
	q.mu.Unlock()

	q.dispatch()

	return <-job.done
}

// Pending returns the number of jobs waiting behind the active one
func (q *SerialQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// dispatch starts the next job unless one is already running
func (q *SerialQueue) dispatch() {
	q.mu.Lock()
	if q.busy || len(q.queue) == 0 {
		q.mu.Unlock()
		return
	}
	job := q.queue[0]
	q.queue = q.queue[1:]
	q.busy = true
	q.mu.Unlock()

	go func() {
		err := job.run()
		if err != nil {
			q.logger.Error("Queued job failed", "error", err)
		}
		job.done <- err

		q.mu.Lock()
		q.busy = false
		q.mu.Unlock()

		q.dispatch()
	}()
}
