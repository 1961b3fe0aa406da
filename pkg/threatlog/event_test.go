package threatlog

import (
	"context"
	"testing"
	"time"

	"github.com/phishguard/phishguard/pkg/verdict"
)

func sampleVerdict(ts time.Time) *verdict.Verdict {
	return &verdict.Verdict{
		Status:      verdict.StatusPhishing,
		Probability: 0.9,
		Source:      verdict.SourceLocal,
		Timestamp:   ts,
	}
}

func TestNewEvent(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	e := NewEvent("http://bad.example/", sampleVerdict(ts))

	if e.ID == "" {
		t.Error("expected generated event ID")
	}
	if e.URL != "http://bad.example/" || e.Probability != 0.9 {
		t.Errorf("event fields not copied: %+v", e)
	}
	if !e.Timestamp.Equal(ts) {
		t.Errorf("timestamp: got %v", e.Timestamp)
	}

	e2 := NewEvent("http://bad.example/", sampleVerdict(ts))
	if e.ID == e2.ID {
		t.Error("event IDs must be unique")
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		e := NewEvent("http://bad.example/", sampleVerdict(base.AddDate(0, 0, i)))
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	n, err := s.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count: got %d, %v", n, err)
	}

	recent, err := s.Since(ctx, base.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Since failed: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("Since: got %d events, want 2", len(recent))
	}
	if len(recent) == 2 && recent[0].Timestamp.After(recent[1].Timestamp) {
		t.Error("Since results must be oldest first")
	}
}

func TestWeeklyBuckets(t *testing.T) {
	now := time.Date(2026, 8, 7, 15, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: now},
		{Timestamp: now.Add(-2 * time.Hour)},
		{Timestamp: now.AddDate(0, 0, -3)},
		// Outside the window.
		{Timestamp: now.AddDate(0, 0, -7)},
	}

	buckets := WeeklyBuckets(events, now)
	if len(buckets) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(buckets))
	}
	if buckets[0].Date != "2026-08-01" || buckets[6].Date != "2026-08-07" {
		t.Errorf("bucket range: %s .. %s", buckets[0].Date, buckets[6].Date)
	}
	if buckets[6].Count != 2 {
		t.Errorf("today: got %d, want 2", buckets[6].Count)
	}
	if buckets[3].Count != 1 {
		t.Errorf("three days ago: got %d, want 1", buckets[3].Count)
	}

	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	if total != 3 {
		t.Errorf("window total: got %d, want 3", total)
	}
}
