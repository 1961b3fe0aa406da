package decision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phishguard/phishguard/pkg/gate"
	"github.com/phishguard/phishguard/pkg/patterns"
	"github.com/phishguard/phishguard/pkg/threatlog"
	"github.com/phishguard/phishguard/pkg/tiers"
	"github.com/phishguard/phishguard/pkg/verdict"
)

type stubTier struct {
	name    string
	verdict *verdict.Verdict
	err     error
	calls   atomic.Int64
}

func (s *stubTier) Name() string { return s.name }

func (s *stubTier) Check(ctx context.Context, rawURL string) (*verdict.Verdict, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.verdict, nil
}

func phishingVerdict(p float64) *verdict.Verdict {
	return verdict.Classify(p, 0.25, verdict.SourceLocal, time.Unix(1754000000, 0).UTC())
}

func safeVerdict() *verdict.Verdict {
	return verdict.Classify(0.8, 0.9, verdict.SourceLocal, time.Unix(1754000000, 0).UTC())
}

func newTestGate(t *testing.T, domains string) *gate.Gate {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whitelist.json")
	if err := os.WriteFile(path, []byte(`{"domains": [`+domains+`]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	return gate.New(gate.NewFileWhitelist(path), 2*time.Minute)
}

func TestCheckBlocksPhishing(t *testing.T) {
	local := &stubTier{name: "local", verdict: phishingVerdict(0.9)}
	events := threatlog.NewMemoryStore()
	o := New(newTestGate(t, ""), []tiers.Tier{local}, events, nil, "https://safe.example/")

	d := o.Check(context.Background(), "http://secure-login-verify.tk/account")
	if d.Allowed {
		t.Fatal("phishing verdict must block")
	}
	if d.Interstitial == nil {
		t.Fatal("blocked decision needs an interstitial")
	}
	if len(d.Interstitial.Reasons) == 0 {
		t.Error("interstitial reasons must not be empty")
	}
	if d.Interstitial.SafeURL != "https://safe.example/" {
		t.Errorf("safe url: got %q", d.Interstitial.SafeURL)
	}

	n, _ := events.Count(context.Background())
	if n != 1 {
		t.Errorf("expected one recorded event, got %d", n)
	}
	if o.BlockedCount() != 1 {
		t.Errorf("blocked counter: got %d", o.BlockedCount())
	}
}

func TestCheckAllowsSafe(t *testing.T) {
	local := &stubTier{name: "local", verdict: safeVerdict()}
	events := threatlog.NewMemoryStore()
	o := New(newTestGate(t, ""), []tiers.Tier{local}, events, nil, "")

	d := o.Check(context.Background(), "http://example.com/")
	if !d.Allowed {
		t.Fatal("safe verdict must allow")
	}
	if d.Interstitial != nil {
		t.Error("allowed decision must not carry an interstitial")
	}
	if n, _ := events.Count(context.Background()); n != 0 {
		t.Errorf("no event expected, got %d", n)
	}
}

func TestCheckWhitelistSkipsChain(t *testing.T) {
	local := &stubTier{name: "local", verdict: phishingVerdict(0.99)}
	o := New(newTestGate(t, `"trusted.example"`), []tiers.Tier{local}, threatlog.NewMemoryStore(), nil, "")

	d := o.Check(context.Background(), "https://www.trusted.example/login")
	if !d.Allowed || d.Skipped != SkipWhitelist {
		t.Fatalf("expected whitelist skip, got %+v", d)
	}
	if local.calls.Load() != 0 {
		t.Error("whitelisted URL must not reach the scoring chain")
	}
}

func TestCheckBypassSkipsChain(t *testing.T) {
	local := &stubTier{name: "local", verdict: phishingVerdict(0.99)}
	g := newTestGate(t, "")
	o := New(g, []tiers.Tier{local}, threatlog.NewMemoryStore(), nil, "")

	g.AddOneTimeBypass("http://risky.example/login")
	d := o.Check(context.Background(), "http://risky.example/login")
	if !d.Allowed || d.Skipped != SkipBypass {
		t.Fatalf("expected bypass skip, got %+v", d)
	}
	if local.calls.Load() != 0 {
		t.Error("bypassed URL must not reach the scoring chain")
	}
}

func TestCheckFallsThroughChain(t *testing.T) {
	remote := &stubTier{name: "remote", err: errors.New("connection refused")}
	local := &stubTier{name: "local", err: tiers.ErrNotReady}
	external := &stubTier{name: "external", verdict: &verdict.Verdict{
		Status:         verdict.StatusPhishing,
		Classification: "Flagged by threat list | Not in scan database",
		Probability:    0.9,
		Source:         verdict.SourceExternal,
		Timestamp:      time.Now(),
	}}
	o := New(newTestGate(t, ""), []tiers.Tier{remote, local, external}, threatlog.NewMemoryStore(), nil, "")

	d := o.Check(context.Background(), "http://bad.example/")
	if d.Allowed {
		t.Fatal("terminal tier verdict must be honored")
	}
	if d.Verdict.Source != verdict.SourceExternal {
		t.Errorf("source: got %s", d.Verdict.Source)
	}
	if remote.calls.Load() != 1 || local.calls.Load() != 1 || external.calls.Load() != 1 {
		t.Error("every tier should be consulted exactly once")
	}
	if len(d.Interstitial.Reasons) != 2 {
		t.Errorf("reasons: got %v", d.Interstitial.Reasons)
	}
}

func TestCheckFailsafeOnExhaustion(t *testing.T) {
	a := &stubTier{name: "a", err: errors.New("down")}
	b := &stubTier{name: "b", err: tiers.ErrNotReady}
	o := New(newTestGate(t, ""), []tiers.Tier{a, b}, threatlog.NewMemoryStore(), nil, "")

	d := o.Check(context.Background(), "http://example.com/")
	if !d.Allowed {
		t.Fatal("fail-safe must not block")
	}
	if d.Verdict.Source != verdict.SourceFailsafe {
		t.Errorf("source: got %s", d.Verdict.Source)
	}
	if d.Verdict.Status != verdict.StatusUnknown {
		t.Errorf("status: got %s", d.Verdict.Status)
	}
}

func TestCheckSubmitsAudit(t *testing.T) {
	received := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
	}))
	defer server.Close()

	local := &stubTier{name: "local", verdict: phishingVerdict(0.9)}
	o := New(newTestGate(t, ""), []tiers.Tier{local}, threatlog.NewMemoryStore(), threatlog.NewAuditSink(server.URL), "")

	o.Check(context.Background(), "http://bad.example/")
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("audit record never submitted")
	}
}

func TestCheckPatternScanBlocksBeforeChain(t *testing.T) {
	local := &stubTier{name: "local", verdict: safeVerdict()}
	events := threatlog.NewMemoryStore()
	o := New(newTestGate(t, ""), []tiers.Tier{local}, events, nil, "")
	o.EnablePatternScan(patterns.Get(), 80)

	d := o.Check(context.Background(), "http://trusted.com@evil.net/")
	if d.Allowed {
		t.Fatal("high-severity pattern hit must block")
	}
	if d.Verdict.Status != verdict.StatusPhishingPattern {
		t.Errorf("status: got %s", d.Verdict.Status)
	}
	if d.Verdict.Source != verdict.SourcePatterns {
		t.Errorf("source: got %s", d.Verdict.Source)
	}
	if local.calls.Load() != 0 {
		t.Error("pattern block must preempt the scoring chain")
	}
	if n, _ := events.Count(context.Background()); n != 1 {
		t.Errorf("pattern block must record an event, got %d", n)
	}
}

func TestCheckPatternScanBelowThresholdFallsThrough(t *testing.T) {
	local := &stubTier{name: "local", verdict: safeVerdict()}
	o := New(newTestGate(t, ""), []tiers.Tier{local}, threatlog.NewMemoryStore(), nil, "")
	o.EnablePatternScan(patterns.Get(), 80)

	// Severity 70 lure host stays below the threshold and reaches the model.
	d := o.Check(context.Background(), "http://secure-login-verify.example.com/")
	if !d.Allowed {
		t.Fatal("sub-threshold pattern hit must defer to the chain")
	}
	if local.calls.Load() != 1 {
		t.Error("scoring chain should have been consulted")
	}
}

func TestShouldCheck(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com/", true},
		{"https://example.com/", true},
		{"chrome-extension://abcdef/page.html", false},
		{"about:blank", false},
		{"file:///etc/passwd", false},
		{"ftp://example.com/", false},
	}
	for _, tt := range tests {
		if got := ShouldCheck(tt.url); got != tt.want {
			t.Errorf("ShouldCheck(%q): got %v, want %v", tt.url, got, tt.want)
		}
	}
}
