package tiers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/phishguard/phishguard/pkg/httputil"
	"github.com/phishguard/phishguard/pkg/verdict"
)

// RemoteTier asks a peer gateway for a prediction. It is the first tier in
// the chain; any failure or warm-up response falls through to the local
// model.
type RemoteTier struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	now     func() time.Time
}

// NewRemoteTier creates a tier against the peer gateway at baseURL.
func NewRemoteTier(baseURL string, timeout time.Duration) *RemoteTier {
	return &RemoteTier{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  httputil.Client(httputil.BudgetInference),
		now:     time.Now,
	}
}

// Name identifies the tier in logs and verdict sources.
func (t *RemoteTier) Name() string { return verdict.SourceRemote }

type remotePrediction struct {
	Status         string  `json:"status"`
	Classification string  `json:"classification"`
	Probability    float64 `json:"probability"`
	Threshold      float64 `json:"threshold"`
	OriginalURL    string  `json:"originalUrl"`
}

// Check posts rawURL to the peer's prediction endpoint. A response without
// a threshold means the peer's model is still loading, which declines with
// ErrNotReady rather than trusting a default score.
func (t *RemoteTier) Check(ctx context.Context, rawURL string) (*verdict.Verdict, error) {
	if t.baseURL == "" {
		return nil, ErrNotReady
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote inference: %w", err)
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote inference: unexpected status %d", resp.StatusCode)
	}

	data, err := httputil.ReadResponseBody(resp.Body, 0)
	if err != nil {
		return nil, fmt.Errorf("remote inference: read body: %w", err)
	}

	var pred remotePrediction
	if err := json.Unmarshal(data, &pred); err != nil {
		return nil, fmt.Errorf("remote inference: decode: %w", err)
	}
	if pred.Threshold == 0 {
		return nil, ErrNotReady
	}

	return verdict.Classify(pred.Probability, pred.Threshold, verdict.SourceRemote, t.now()), nil
}

type remoteHealth struct {
	Status         string `json:"status"`
	ModelLoaded    bool   `json:"model_loaded"`
	MetadataLoaded bool   `json:"metadata_loaded"`
}

// Health probes the peer once, used at startup to log chain availability.
func (t *RemoteTier) Health(ctx context.Context) (bool, error) {
	if t.baseURL == "" {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("health probe: %w", err)
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	data, err := httputil.ReadResponseBody(resp.Body, 0)
	if err != nil {
		return false, fmt.Errorf("health probe: read body: %w", err)
	}

	var h remoteHealth
	if err := json.Unmarshal(data, &h); err != nil {
		return false, fmt.Errorf("health probe: decode: %w", err)
	}
	return h.ModelLoaded && h.MetadataLoaded, nil
}
