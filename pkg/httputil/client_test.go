package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientSingleton(t *testing.T) {
	// Repeated calls for the same budget return the same pooled client.
	c1 := Client(BudgetInference)
	c2 := Client(BudgetInference)
	if c1 != c2 {
		t.Error("Client() should return the same instance for same budget")
	}

	if Client(BudgetInference) == Client(BudgetScanReport) {
		t.Error("different budgets should return different clients")
	}
}

func TestClientBudgets(t *testing.T) {
	tests := []struct {
		budget Budget
		want   time.Duration
	}{
		{BudgetInference, 3 * time.Second},
		{BudgetThreatList, 5 * time.Second},
		{BudgetScanReport, 8 * time.Second},
		{BudgetAudit, 10 * time.Second},
	}

	for _, tt := range tests {
		if c := Client(tt.budget); c.Timeout != tt.want {
			t.Errorf("budget %d: got timeout %v, want %v", tt.budget, c.Timeout, tt.want)
		}
	}
}

func TestReadResponseBody(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxSize int64
		wantLen int
	}{
		{"normal read", "hello world", 1024, 11},
		{"truncated read", strings.Repeat("x", 1000), 100, 100},
		{"default limit", "short", 0, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadResponseBody(strings.NewReader(tt.input), tt.maxSize)
			if err != nil {
				t.Fatalf("ReadResponseBody failed: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("got %d bytes, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestDrainAndClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	resp, err := Client(BudgetInference).Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	DrainAndClose(resp.Body)

	// Double close must not panic.
	DrainAndClose(resp.Body)
	DrainAndClose(nil)
}
