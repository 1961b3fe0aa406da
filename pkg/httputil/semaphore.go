package httputil

import (
	"context"
	"sync/atomic"
)

// Semaphore bounds concurrent fire-and-forget operations (audit posts) so a
// burst of blocked navigations cannot accumulate goroutines.
type Semaphore struct {
	sem     chan struct{}
	dropped atomic.Int64
}

// NewSemaphore creates a semaphore with the given capacity.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 100
	}
	return &Semaphore{sem: make(chan struct{}, capacity)}
}

// TryAcquire attempts to take a slot without blocking. When the pool is
// full the operation is dropped; audit delivery is best-effort.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Acquire blocks until a slot is available or the context is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot.
func (s *Semaphore) Release() {
	select {
	case <-s.sem:
	default:
	}
}

// DroppedCount returns how many operations were shed at capacity.
func (s *Semaphore) DroppedCount() int64 {
	return s.dropped.Load()
}
