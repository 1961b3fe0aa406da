package httputil

import (
	"context"
	"testing"
	"time"
)

func TestSemaphoreTryAcquire(t *testing.T) {
	s := NewSemaphore(2)

	if !s.TryAcquire() || !s.TryAcquire() {
		t.Fatal("expected two slots")
	}
	if s.TryAcquire() {
		t.Error("expected third acquire to fail at capacity")
	}
	if s.DroppedCount() != 1 {
		t.Errorf("dropped count: got %d, want 1", s.DroppedCount())
	}

	s.Release()
	if !s.TryAcquire() {
		t.Error("expected acquire to succeed after release")
	}
}

func TestSemaphoreAcquireContext(t *testing.T) {
	s := NewSemaphore(1)
	if !s.TryAcquire() {
		t.Fatal("expected first slot")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.Acquire(ctx); err == nil {
		t.Error("expected context deadline error at capacity")
	}
}

func TestSemaphoreDefaultCapacity(t *testing.T) {
	s := NewSemaphore(0)
	if !s.TryAcquire() {
		t.Error("zero capacity should fall back to a usable default")
	}
}
