// Package verdict defines the standardized output every scoring tier
// produces, and the single canonical mapping from probability to status.
//
// The probability convention is high-means-phishing: a probability at or
// above the trained threshold classifies as phishing. The inverted
// convention (low-means-phishing) that existed in older popup-path code is
// not replicated here.
package verdict

import (
	"fmt"
	"time"
)

// Status is the tier-independent classification of a URL.
type Status string

const (
	StatusSafe     Status = "safe"
	StatusUnknown  Status = "unknown"
	StatusPhishing Status = "phishing"

	// StatusPhishingPattern is accepted on input for compatibility with
	// older pattern-path detectors; the orchestrator blocks on it exactly
	// like StatusPhishing.
	StatusPhishingPattern Status = "phishing_pattern"

	// StatusError marks a reputation sub-service that failed; it never
	// appears as a final verdict status.
	StatusError Status = "error"
)

// Tier identifiers recorded in Verdict.Source.
const (
	SourceRemote   = "remote_inference"
	SourceLocal    = "local_model"
	SourceExternal = "external_apis"
	SourcePatterns = "pattern_heuristics"
	SourceFailsafe = "failsafe"
)

// SecondaryCutoff separates unknown from safe above the phishing threshold:
// threshold < p <= SecondaryCutoff is unknown, p > SecondaryCutoff is safe.
const SecondaryCutoff = 0.75

// Verdict is the standardized output of a scoring tier. Produced fresh per
// check and never mutated afterwards.
type Verdict struct {
	Status         Status      `json:"status"`
	Classification string      `json:"classification"`
	Probability    float64     `json:"probability"`
	Threshold      float64     `json:"threshold"`
	Source         string      `json:"source"`
	Timestamp      time.Time   `json:"timestamp"`
	APIResults     *APIResults `json:"apiResults,omitempty"`
}

// SubResult is one reputation service's answer for a URL.
type SubResult struct {
	Status         Status  `json:"status"`
	Classification string  `json:"classification"`
	Matches        int     `json:"matches,omitempty"`
	Positives      int     `json:"positives,omitempty"`
	Total          int     `json:"total,omitempty"`
	ScanDate       string  `json:"scan_date,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// APIResults carries the raw per-service sub-verdicts the reputation tier
// merged. Attached to a Verdict only when Source is SourceExternal.
type APIResults struct {
	ThreatList  *SubResult `json:"threat_list"`
	MultiEngine *SubResult `json:"multi_engine"`
}

// Classify maps a model probability to the canonical verdict:
// p >= threshold is phishing, threshold < p <= SecondaryCutoff is unknown,
// p > SecondaryCutoff is safe. Confidence strings report p*100 for
// phishing/unknown and (1-p)*100 for safe.
func Classify(probability, threshold float64, source string, now time.Time) *Verdict {
	v := &Verdict{
		Probability: probability,
		Threshold:   threshold,
		Source:      source,
		Timestamp:   now,
	}

	switch {
	case probability >= threshold:
		v.Status = StatusPhishing
		v.Classification = fmt.Sprintf("AI: Phishing (%.1f%% match to known patterns)", probability*100)
	case probability <= SecondaryCutoff:
		v.Status = StatusUnknown
		v.Classification = fmt.Sprintf("AI: Unfamiliar pattern (%.1f%% match to known patterns)", probability*100)
	default:
		v.Status = StatusSafe
		v.Classification = fmt.Sprintf("AI: Likely safe (%.1f%% confidence)", (1-probability)*100)
	}
	return v
}

// NotReady is the fail-safe verdict a tier emits while its model or
// metadata has not finished loading. Never blocks.
func NotReady(source string, threshold float64, now time.Time) *Verdict {
	return &Verdict{
		Status:         StatusSafe,
		Classification: "AI: Model not ready",
		Probability:    0,
		Threshold:      threshold,
		Source:         source,
		Timestamp:      now,
	}
}

// Failsafe is emitted on total tier exhaustion so a check always resolves.
func Failsafe(now time.Time) *Verdict {
	return &Verdict{
		Status:         StatusUnknown,
		Classification: "All detection tiers unavailable - assuming unknown",
		Probability:    0,
		Threshold:      0,
		Source:         SourceFailsafe,
		Timestamp:      now,
	}
}

// Blocks reports whether a final status triggers the interstitial.
func (s Status) Blocks() bool {
	return s == StatusPhishing || s == StatusPhishingPattern
}
