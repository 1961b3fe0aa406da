// Package decision runs the full check for one navigation: access gate,
// scoring chain, and the block-or-allow outcome with its side effects.
package decision

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/phishguard/phishguard/pkg/gate"
	"github.com/phishguard/phishguard/pkg/patterns"
	"github.com/phishguard/phishguard/pkg/threatlog"
	"github.com/phishguard/phishguard/pkg/tiers"
	"github.com/phishguard/phishguard/pkg/verdict"
)

// Skip reasons recorded on decisions that never reached the scoring chain.
const (
	SkipBypass    = "bypass"
	SkipWhitelist = "whitelist"
)

// Interstitial is the payload rendered on the warning page.
type Interstitial struct {
	URL     string   `json:"url"`
	Reasons []string `json:"reasons"`
	SafeURL string   `json:"safeUrl"`
}

// Decision is the outcome of checking one URL.
type Decision struct {
	URL          string           `json:"url"`
	Allowed      bool             `json:"allowed"`
	Skipped      string           `json:"skipped,omitempty"`
	Verdict      *verdict.Verdict `json:"verdict,omitempty"`
	Interstitial *Interstitial    `json:"interstitial,omitempty"`
}

// Orchestrator wires the gate, the ordered tier chain, and the block-side
// effects together.
type Orchestrator struct {
	gate     *gate.Gate
	tiers    []tiers.Tier
	events   threatlog.Store
	audit    *threatlog.AuditSink
	safePage string

	patterns   *patterns.Registry
	patternMin int

	blocked atomic.Int64
	now     func() time.Time
}

// New creates an orchestrator. Tiers are consulted in slice order; the
// first committed verdict wins.
func New(g *gate.Gate, chain []tiers.Tier, events threatlog.Store, audit *threatlog.AuditSink, safePage string) *Orchestrator {
	return &Orchestrator{
		gate:     g,
		tiers:    chain,
		events:   events,
		audit:    audit,
		safePage: safePage,
		now:      time.Now,
	}
}

// EnablePatternScan turns on the heuristic pattern check that runs before
// the scoring chain. A match at or above minSeverity blocks immediately
// with StatusPhishingPattern.
func (o *Orchestrator) EnablePatternScan(r *patterns.Registry, minSeverity int) {
	o.patterns = r
	o.patternMin = minSeverity
}

// ShouldCheck reports whether rawURL is a navigable web URL worth scoring.
// Internal and extension schemes pass through unchecked.
func ShouldCheck(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Check decides whether the navigation to rawURL proceeds. It always
// returns a decision; tier failures degrade, never error out.
func (o *Orchestrator) Check(ctx context.Context, rawURL string) *Decision {
	if o.gate.HasOneTimeBypass(rawURL) {
		return &Decision{URL: rawURL, Allowed: true, Skipped: SkipBypass}
	}
	if o.gate.IsWhitelisted(rawURL) {
		return &Decision{URL: rawURL, Allowed: true, Skipped: SkipWhitelist}
	}

	var v *verdict.Verdict
	if o.patterns != nil {
		if res := o.patterns.Scan(rawURL); res.Severity >= o.patternMin {
			v = patternVerdict(res, o.now())
			log.Printf("[Decision] Pattern hit on %s (%d matches, severity %d)",
				rawURL, len(res.Matches), res.Severity)
		}
	}
	if v == nil {
		v = o.score(ctx, rawURL)
	}
	d := &Decision{URL: rawURL, Verdict: v}

	if !v.Status.Blocks() {
		d.Allowed = true
		return d
	}

	o.blocked.Add(1)
	log.Printf("[Decision] Blocking %s (%s, p=%.3f, via %s)", rawURL, v.Status, v.Probability, v.Source)

	e := threatlog.NewEvent(rawURL, v)
	if err := o.events.Append(ctx, e); err != nil {
		log.Printf("[Decision] Event append failed: %v", err)
	}
	if o.audit != nil {
		o.audit.Submit(rawURL, v)
	}

	d.Interstitial = &Interstitial{
		URL:     rawURL,
		Reasons: reasons(v),
		SafeURL: o.safePage,
	}
	return d
}

// score walks the tier chain. A tier that errors or declines hands off to
// the next; exhaustion yields the fail-safe verdict.
func (o *Orchestrator) score(ctx context.Context, rawURL string) *verdict.Verdict {
	for _, t := range o.tiers {
		v, err := t.Check(ctx, rawURL)
		if err != nil {
			if errors.Is(err, tiers.ErrNotReady) {
				log.Printf("[Decision] Tier %s not ready, falling through", t.Name())
			} else {
				log.Printf("[Decision] Tier %s failed: %v", t.Name(), err)
			}
			continue
		}
		if v == nil || v.Status == verdict.StatusError {
			continue
		}
		return v
	}
	return verdict.Failsafe(o.now())
}

// BlockedCount returns how many navigations this process has blocked.
func (o *Orchestrator) BlockedCount() int64 {
	return o.blocked.Load()
}

func patternVerdict(res patterns.ScanResult, now time.Time) *verdict.Verdict {
	descriptions := make([]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		descriptions = append(descriptions, m.Description)
	}
	return &verdict.Verdict{
		Status:         verdict.StatusPhishingPattern,
		Classification: strings.Join(descriptions, " | "),
		Probability:    float64(res.Severity) / 100,
		Source:         verdict.SourcePatterns,
		Timestamp:      now,
	}
}

func reasons(v *verdict.Verdict) []string {
	var out []string
	for _, part := range strings.Split(v.Classification, " | ") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{"Flagged as " + string(v.Status)}
	}
	return out
}
