package main

import (
	"context"
	"log"
	"time"
)

// drainMargin covers the alert enqueue a failed status write may still make.
const drainMargin = 5 * time.Second

// shutdown stops the process components in dependency order. The scheduler
// drains before the queue and its client go away, since an in-flight publish
// may still report stuck content through them.
type shutdown struct {
	stopHTTP      func() error
	stopCron      func()
	stopScheduler func(ctx context.Context) error
	stopQueue     func()
	closeClient   func() error
	closeDB       func()
	drain         time.Duration
}

// drainTimeout is long enough for one publish attempt plus its status write.
func drainTimeout(publish, write time.Duration) time.Duration {
	return publish + write + drainMargin
}

func (s shutdown) run() {
	if s.stopHTTP != nil {
		if err := s.stopHTTP(); err != nil {
			log.Printf("Failed to shut down server: %v", err)
		}
	}
	if s.stopCron != nil {
		s.stopCron()
	}

	if s.stopScheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.drain)
		if err := s.stopScheduler(ctx); err != nil {
			log.Printf("Scheduler did not drain in time: %v", err)
		}
		cancel()
	}

	if s.stopQueue != nil {
		s.stopQueue()
	}
	if s.closeClient != nil {
		if err := s.closeClient(); err != nil {
			log.Printf("Failed to close queue client: %v", err)
		}
	}
	if s.closeDB != nil {
		s.closeDB()
	}
}
