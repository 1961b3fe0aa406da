package threatlog

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/phishguard/phishguard/pkg/httputil"
	"github.com/phishguard/phishguard/pkg/verdict"
)

// AuditRecord is the detection summary shipped to the audit endpoint.
type AuditRecord struct {
	URL                string    `json:"url"`
	Hostname           string    `json:"hostname"`
	Score              float64   `json:"score"`
	ThreatListDetected bool      `json:"threat_list_detected"`
	ScanReportDetected bool      `json:"scan_report_detected"`
	Status             string    `json:"status"`
	Timestamp          time.Time `json:"timestamp"`
	Source             string    `json:"source"`
}

// AuditSink posts detection records to an external collector. Delivery is
// fire-and-forget: failures are logged and swallowed, and a semaphore
// sheds load when the collector falls behind.
type AuditSink struct {
	endpoint string
	client   *http.Client
	sem      *httputil.Semaphore
}

// NewAuditSink creates a sink for endpoint. An empty endpoint disables
// submission.
func NewAuditSink(endpoint string) *AuditSink {
	return &AuditSink{
		endpoint: endpoint,
		client:   httputil.Client(httputil.BudgetAudit),
		sem:      httputil.NewSemaphore(100),
	}
}

// Enabled reports whether records will actually be sent.
func (s *AuditSink) Enabled() bool { return s.endpoint != "" }

// Submit ships a record for the verdict asynchronously and returns
// immediately. Records are dropped when the in-flight pool is full.
func (s *AuditSink) Submit(rawURL string, v *verdict.Verdict) {
	if !s.Enabled() {
		return
	}
	if !s.sem.TryAcquire() {
		log.Printf("[Audit] In-flight pool full, dropping record for %s", rawURL)
		return
	}

	rec := buildRecord(rawURL, v)
	go func() {
		defer s.sem.Release()
		if err := s.post(rec); err != nil {
			log.Printf("[Audit] Submit failed: %v", err)
		}
	}()
}

func (s *AuditSink) post(rec AuditRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	resp, err := s.client.Post(s.endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer httputil.DrainAndClose(resp.Body)
	return nil
}

func buildRecord(rawURL string, v *verdict.Verdict) AuditRecord {
	rec := AuditRecord{
		URL:       rawURL,
		Score:     v.Probability,
		Status:    string(v.Status),
		Timestamp: v.Timestamp,
		Source:    v.Source,
	}
	if u, err := url.Parse(rawURL); err == nil {
		rec.Hostname = u.Hostname()
	}
	if v.APIResults != nil {
		if tl := v.APIResults.ThreatList; tl != nil {
			rec.ThreatListDetected = tl.Status == verdict.StatusPhishing
		}
		if me := v.APIResults.MultiEngine; me != nil {
			rec.ScanReportDetected = me.Status == verdict.StatusPhishing
		}
	}
	return rec
}
