// Package httputil provides the shared HTTP plumbing for the gateway:
// pooled clients sized to the per-tier latency budgets and safe response
// body handling.
package httputil

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaxResponseSize caps response body reads. External reputation services
// are not trusted to return bounded payloads.
const MaxResponseSize = 10 * 1024 * 1024 // 10MB

// Shared transport with connection pooling, reused by every client so
// per-navigation checks do not pay a TCP+TLS handshake each time.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// Budget is a latency ceiling for one class of outbound call. The values
// mirror the decision pipeline's tier budgets: a navigation check never
// stalls longer than the slowest tier it falls through to.
type Budget int

const (
	// BudgetInference covers calls to a peer inference service (3s).
	BudgetInference Budget = iota
	// BudgetThreatList covers threat-list reputation lookups (5s).
	BudgetThreatList
	// BudgetScanReport covers multi-engine report lookups, the slowest
	// external dependency (8s).
	BudgetScanReport
	// BudgetAudit covers fire-and-forget audit posts, which never gate a
	// navigation (10s).
	BudgetAudit
)

var budgetDurations = map[Budget]time.Duration{
	BudgetInference:  3 * time.Second,
	BudgetThreatList: 5 * time.Second,
	BudgetScanReport: 8 * time.Second,
	BudgetAudit:      10 * time.Second,
}

var (
	clients    map[Budget]*http.Client
	clientOnce sync.Once
)

func initClients() {
	clients = make(map[Budget]*http.Client, len(budgetDurations))
	for b, d := range budgetDurations {
		clients[b] = &http.Client{
			Timeout:   d,
			Transport: sharedTransport,
		}
	}
}

// Client returns the shared HTTP client for a budget. Clients share one
// connection pool; callers must not mutate them.
func Client(b Budget) *http.Client {
	clientOnce.Do(initClients)
	if c, ok := clients[b]; ok {
		return c
	}
	return clients[BudgetScanReport]
}

// ReadResponseBody reads a response body with a size limit.
func ReadResponseBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// DrainAndClose drains and closes a response body so the underlying
// connection returns to the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
