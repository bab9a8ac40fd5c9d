package ports

import "github.com/hoanghieutb97/server-downfilein/internal/core/domain"

// Event is the sealed interface for all progress event types
type Event interface {
	sealed()
}

// StageEvent reports a stage transition or incremental progress
type StageEvent struct {
	Stage   domain.Stage
	Message string
	Percent int
}

// CompletedEvent signals successful completion with the upload result
type CompletedEvent struct {
	Message string
	Result  *domain.UploadResult
}

// ErrorEvent signals a terminal failure
type ErrorEvent struct {
	Stage domain.Stage
	Err   error
}

func (StageEvent) sealed()     {}
func (CompletedEvent) sealed() {}
func (ErrorEvent) sealed()     {}
