package verdict

import (
	"strings"
	"testing"
	"time"
)

func TestClassifyThresholdBoundary(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		p    float64
		want Status
	}{
		{"exactly at threshold", 0.25, StatusPhishing}, // closed lower bound
		{"just below threshold", 0.24999, StatusUnknown},
		{"well above threshold", 0.9, StatusPhishing},
		{"at secondary cutoff", 0.75, StatusPhishing}, // 0.75 >= 0.25
		{"zero", 0, StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.p, 0.25, SourceLocal, now)
			if v.Status != tt.want {
				t.Errorf("Classify(%v, 0.25): got %s, want %s", tt.p, v.Status, tt.want)
			}
		})
	}
}

func TestClassifySecondaryCutoff(t *testing.T) {
	now := time.Now()

	// With a high threshold the unknown/safe split at 0.75 is reachable.
	if v := Classify(0.5, 0.9, SourceLocal, now); v.Status != StatusUnknown {
		t.Errorf("p=0.5 thr=0.9: got %s, want unknown", v.Status)
	}
	if v := Classify(0.8, 0.9, SourceLocal, now); v.Status != StatusSafe {
		t.Errorf("p=0.8 thr=0.9: got %s, want safe", v.Status)
	}
}

func TestClassifyConfidenceStrings(t *testing.T) {
	now := time.Now()

	v := Classify(0.9, 0.25, SourceLocal, now)
	if !strings.Contains(v.Classification, "90.0%") {
		t.Errorf("phishing confidence: got %q, want 90.0%%", v.Classification)
	}

	v = Classify(0.8, 0.9, SourceLocal, now)
	if !strings.Contains(v.Classification, "20.0%") {
		t.Errorf("safe confidence reports 1-p: got %q, want 20.0%%", v.Classification)
	}

	v = Classify(0.5, 0.9, SourceLocal, now)
	if !strings.Contains(v.Classification, "50.0%") {
		t.Errorf("unknown confidence reports p: got %q", v.Classification)
	}
}

func TestNotReadyNeverBlocks(t *testing.T) {
	v := NotReady(SourceLocal, 0.25, time.Now())
	if v.Status.Blocks() {
		t.Error("not-ready verdict must not block")
	}
	if v.Probability != 0 {
		t.Errorf("not-ready probability: got %v, want 0", v.Probability)
	}
}

func TestBlocks(t *testing.T) {
	tests := []struct {
		s    Status
		want bool
	}{
		{StatusPhishing, true},
		{StatusPhishingPattern, true},
		{StatusSafe, false},
		{StatusUnknown, false},
		{StatusError, false},
	}
	for _, tt := range tests {
		if got := tt.s.Blocks(); got != tt.want {
			t.Errorf("%s.Blocks(): got %v, want %v", tt.s, got, tt.want)
		}
	}
}
