// Package threatlog records blocked-navigation events and ships optional
// best-effort audit records to an external sink.
package threatlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phishguard/phishguard/pkg/verdict"
)

// Event is one blocked navigation.
type Event struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Timestamp   time.Time      `json:"timestamp"`
	Status      verdict.Status `json:"status"`
	Probability float64        `json:"probability"`
	Source      string         `json:"source"`
}

// NewEvent builds an event from a blocking verdict.
func NewEvent(rawURL string, v *verdict.Verdict) Event {
	return Event{
		ID:          uuid.NewString(),
		URL:         rawURL,
		Timestamp:   v.Timestamp,
		Status:      v.Status,
		Probability: v.Probability,
		Source:      v.Source,
	}
}

// Store persists blocked events.
type Store interface {
	Append(ctx context.Context, e Event) error
	Count(ctx context.Context) (int, error)
	Since(ctx context.Context, cutoff time.Time) ([]Event, error)
}

// MemoryStore keeps events in process memory, the default when no
// database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append records e.
func (s *MemoryStore) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

// Count returns the total number of recorded events.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

// Since returns events at or after cutoff, oldest first.
func (s *MemoryStore) Since(_ context.Context, cutoff time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// DayCount is one day's blocked total in a stats response.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// WeeklyBuckets groups events into the last seven calendar days ending at
// now, oldest day first. Days without blocks appear with a zero count.
func WeeklyBuckets(events []Event, now time.Time) []DayCount {
	buckets := make([]DayCount, 7)
	index := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		day := now.AddDate(0, 0, i-6).Format("2006-01-02")
		buckets[i] = DayCount{Date: day}
		index[day] = i
	}
	for _, e := range events {
		if i, ok := index[e.Timestamp.Format("2006-01-02")]; ok {
			buckets[i].Count++
		}
	}
	return buckets
}
