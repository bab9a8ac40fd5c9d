package adapters

import (
	"time"

	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// SystemClock implements ports.Clock using the real wall clock
type SystemClock struct{}

var _ ports.Clock = (*SystemClock)(nil)

// NewSystemClock creates a new SystemClock
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the current local time
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
