package tiers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/phishguard/phishguard/pkg/httputil"
	"github.com/phishguard/phishguard/pkg/verdict"
)

// Reputation probability synthesis. The external tier never has a trained
// threshold, so scores are fixed points: a list hit is near-certain, a
// clean consensus stays near the floor.
const (
	reputationBaseScore    = 0.1
	reputationListHitScore = 0.9
	reputationBothScore    = 0.98
)

// ThreatListClient checks URLs against a curated threat list service
// (Safe Browsing v4 wire format). Results are cached per URL.
type ThreatListClient struct {
	endpoint string
	apiKey   string
	ttl      time.Duration
	cache    Cache
	client   *http.Client
}

// NewThreatListClient creates a client. An empty apiKey disables lookups;
// every call then reports an error sub-result and the tier degrades.
func NewThreatListClient(endpoint, apiKey string, ttl time.Duration, cache Cache) *ThreatListClient {
	return &ThreatListClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		ttl:      ttl,
		cache:    cache,
		client:   httputil.Client(httputil.BudgetThreatList),
	}
}

type threatListRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo struct {
		ThreatTypes      []string `json:"threatTypes"`
		PlatformTypes    []string `json:"platformTypes"`
		ThreatEntryTypes []string `json:"threatEntryTypes"`
		ThreatEntries    []struct {
			URL string `json:"url"`
		} `json:"threatEntries"`
	} `json:"threatInfo"`
}

type threatListResponse struct {
	Matches []struct {
		ThreatType string `json:"threatType"`
	} `json:"matches"`
}

// Lookup never fails: transport and decode errors become an error-status
// sub-result so one dead service cannot sink the tier.
func (c *ThreatListClient) Lookup(ctx context.Context, rawURL string) *verdict.SubResult {
	if c.apiKey == "" {
		return &verdict.SubResult{Status: verdict.StatusError, Error: "api key not configured"}
	}
	if cached, ok := c.cache.Get(ctx, rawURL); ok {
		return cached
	}

	sr := c.lookup(ctx, rawURL)
	if sr.Status != verdict.StatusError {
		c.cache.Set(ctx, rawURL, sr, c.ttl)
	}
	return sr
}

func (c *ThreatListClient) lookup(ctx context.Context, rawURL string) *verdict.SubResult {
	var body threatListRequest
	body.Client.ClientID = "phishguard"
	body.Client.ClientVersion = "1.0.0"
	body.ThreatInfo.ThreatTypes = []string{
		"MALWARE", "SOCIAL_ENGINEERING", "POTENTIALLY_HARMFUL_APPLICATION", "UNWANTED_SOFTWARE",
	}
	body.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	body.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	body.ThreatInfo.ThreatEntries = []struct {
		URL string `json:"url"`
	}{{URL: rawURL}}

	payload, err := json.Marshal(body)
	if err != nil {
		return &verdict.SubResult{Status: verdict.StatusError, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+url.QueryEscape(c.apiKey), bytes.NewReader(payload))
	if err != nil {
		return &verdict.SubResult{Status: verdict.StatusError, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &verdict.SubResult{Status: verdict.StatusError, Error: err.Error()}
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &verdict.SubResult{Status: verdict.StatusError, Error: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	data, err := httputil.ReadResponseBody(resp.Body, 0)
	if err != nil {
		return &verdict.SubResult{Status: verdict.StatusError, Error: err.Error()}
	}

	var out threatListResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return &verdict.SubResult{Status: verdict.StatusError, Error: err.Error()}
	}

	if len(out.Matches) > 0 {
		return &verdict.SubResult{
			Status:         verdict.StatusPhishing,
			Classification: "Flagged by threat list",
			Matches:        len(out.Matches),
		}
	}
	return &verdict.SubResult{
		Status:         verdict.StatusSafe,
		Classification: "Not on threat list",
	}
}

// ScanReportClient queries a multi-engine scan aggregator for an existing
// report on the URL. Results are cached per URL.
type ScanReportClient struct {
	endpoint string
	apiKey   string
	ttl      time.Duration
	cache    Cache
	client   *http.Client
}

// NewScanReportClient creates a client. An empty apiKey disables lookups.
func NewScanReportClient(endpoint, apiKey string, ttl time.Duration, cache Cache) *ScanReportClient {
	return &ScanReportClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		ttl:      ttl,
		cache:    cache,
		client:   httputil.Client(httputil.BudgetScanReport),
	}
}

type scanReport struct {
	ResponseCode int    `json:"response_code"`
	Positives    int    `json:"positives"`
	Total        int    `json:"total"`
	ScanDate     string `json:"scan_date"`
}

// Lookup never fails; see ThreatListClient.Lookup.
func (c *ScanReportClient) Lookup(ctx context.Context, rawURL string) *verdict.SubResult {
	if c.apiKey == "" {
		return &verdict.SubResult{Status: verdict.StatusError, Error: "api key not configured"}
	}
	if cached, ok := c.cache.Get(ctx, rawURL); ok {
		return cached
	}

	sr := c.lookup(ctx, rawURL)
	if sr.Status != verdict.StatusError {
		c.cache.Set(ctx, rawURL, sr, c.ttl)
	}
	return sr
}

func (c *ScanReportClient) lookup(ctx context.Context, rawURL string) *verdict.SubResult {
	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("resource", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &verdict.SubResult{Status: verdict.StatusError, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return &verdict.SubResult{Status: verdict.StatusError, Error: err.Error()}
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &verdict.SubResult{Status: verdict.StatusError, Error: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	data, err := httputil.ReadResponseBody(resp.Body, 0)
	if err != nil {
		return &verdict.SubResult{Status: verdict.StatusError, Error: err.Error()}
	}

	var report scanReport
	if err := json.Unmarshal(data, &report); err != nil {
		return &verdict.SubResult{Status: verdict.StatusError, Error: err.Error()}
	}

	switch {
	case report.ResponseCode != 1:
		return &verdict.SubResult{
			Status:         verdict.StatusUnknown,
			Classification: "Not in scan database",
		}
	case report.Positives > 0:
		return &verdict.SubResult{
			Status:         verdict.StatusPhishing,
			Classification: fmt.Sprintf("Flagged by %d/%d scan engines", report.Positives, report.Total),
			Positives:      report.Positives,
			Total:          report.Total,
			ScanDate:       report.ScanDate,
		}
	default:
		return &verdict.SubResult{
			Status:         verdict.StatusSafe,
			Classification: fmt.Sprintf("Clean across %d scan engines", report.Total),
			Total:          report.Total,
			ScanDate:       report.ScanDate,
		}
	}
}

// ReputationTier consults both reputation services concurrently and waits
// for both to settle. It always produces a verdict, making it the chain's
// terminal tier.
type ReputationTier struct {
	threatList *ThreatListClient
	scanReport *ScanReportClient
	now        func() time.Time
}

// NewReputationTier combines the two reputation clients.
func NewReputationTier(tl *ThreatListClient, sr *ScanReportClient) *ReputationTier {
	return &ReputationTier{threatList: tl, scanReport: sr, now: time.Now}
}

// Name identifies the tier in logs and verdict sources.
func (t *ReputationTier) Name() string { return verdict.SourceExternal }

// Check runs both lookups and aggregates: any phishing hit convicts, a
// unanimous clean bill acquits, anything else stays unknown.
func (t *ReputationTier) Check(ctx context.Context, rawURL string) (*verdict.Verdict, error) {
	var (
		wg sync.WaitGroup
		tl *verdict.SubResult
		sr *verdict.SubResult
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		tl = t.threatList.Lookup(ctx, rawURL)
	}()
	go func() {
		defer wg.Done()
		sr = t.scanReport.Lookup(ctx, rawURL)
	}()
	wg.Wait()

	status := aggregateStatus(tl.Status, sr.Status)
	probability := synthesizeProbability(tl, sr)

	var parts []string
	for _, s := range []*verdict.SubResult{tl, sr} {
		if s.Classification != "" {
			parts = append(parts, s.Classification)
		}
	}
	classification := strings.Join(parts, " | ")
	if classification == "" {
		classification = "Reputation services unavailable"
	}

	return &verdict.Verdict{
		Status:         status,
		Classification: classification,
		Probability:    probability,
		Source:         verdict.SourceExternal,
		Timestamp:      t.now(),
		APIResults: &verdict.APIResults{
			ThreatList:  tl,
			MultiEngine: sr,
		},
	}, nil
}

func aggregateStatus(a, b verdict.Status) verdict.Status {
	if a == verdict.StatusPhishing || b == verdict.StatusPhishing {
		return verdict.StatusPhishing
	}
	if a == verdict.StatusSafe && b == verdict.StatusSafe {
		return verdict.StatusSafe
	}
	return verdict.StatusUnknown
}

func synthesizeProbability(tl, sr *verdict.SubResult) float64 {
	p := reputationBaseScore
	listHit := tl.Status == verdict.StatusPhishing
	scanHit := sr.Status == verdict.StatusPhishing

	if listHit {
		p = reputationListHitScore
	}
	if scanHit && sr.Total > 0 {
		if ratio := float64(sr.Positives) / float64(sr.Total); ratio > p {
			p = ratio
		}
	}
	if listHit && scanHit {
		p = reputationBothScore
	}
	return p
}
