package threatlog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phishguard/phishguard/pkg/verdict"
)

func TestAuditSinkSubmit(t *testing.T) {
	received := make(chan AuditRecord, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec AuditRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Errorf("decode record: %v", err)
		}
		received <- rec
	}))
	defer server.Close()

	v := sampleVerdict(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	v.APIResults = &verdict.APIResults{
		ThreatList:  &verdict.SubResult{Status: verdict.StatusPhishing},
		MultiEngine: &verdict.SubResult{Status: verdict.StatusSafe},
	}

	sink := NewAuditSink(server.URL)
	sink.Submit("http://bad.example/login", v)

	select {
	case rec := <-received:
		if rec.Hostname != "bad.example" {
			t.Errorf("hostname: got %q", rec.Hostname)
		}
		if !rec.ThreatListDetected || rec.ScanReportDetected {
			t.Errorf("detection flags: %+v", rec)
		}
		if rec.Score != 0.9 {
			t.Errorf("score: got %v", rec.Score)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("record never delivered")
	}
}

func TestAuditSinkDisabled(t *testing.T) {
	sink := NewAuditSink("")
	if sink.Enabled() {
		t.Error("empty endpoint must disable the sink")
	}
	// Must not panic or block.
	sink.Submit("http://example.com/", sampleVerdict(time.Now()))
}

func TestAuditSinkSwallowsFailures(t *testing.T) {
	// No listener at this address; Submit must still return immediately.
	sink := NewAuditSink("http://127.0.0.1:1/audit")
	done := make(chan struct{})
	go func() {
		sink.Submit("http://example.com/", sampleVerdict(time.Now()))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a dead collector")
	}
}
