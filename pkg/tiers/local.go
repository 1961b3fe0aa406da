package tiers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phishguard/phishguard/pkg/features"
	"github.com/phishguard/phishguard/pkg/model"
	"github.com/phishguard/phishguard/pkg/verdict"
)

// ScoreRequest asks the model host for a probability. Reply must be
// buffered so a slow caller never wedges the serve loop.
type ScoreRequest struct {
	ID    string
	URL   string
	Reply chan ScoreReply
}

// ScoreReply carries the score back, correlated by request ID.
type ScoreReply struct {
	ID          string
	Probability float64
	Threshold   float64
	Err         error
}

// ModelHost owns the local model artifact. Loading happens in the
// background; until it finishes every caller sees not-ready and falls
// through to the next tier.
type ModelHost struct {
	mu        sync.RWMutex
	artifact  *model.Artifact
	loadErr   error
	extractor features.Extractor
	requests  chan ScoreRequest
}

// NewModelHost creates a host with no artifact loaded.
func NewModelHost(extractor features.Extractor) *ModelHost {
	return &ModelHost{
		extractor: extractor,
		requests:  make(chan ScoreRequest, 16),
	}
}

// Load reads the artifact from dir in the background. Safe to call once at
// startup; scoring requests issued before completion decline.
func (h *ModelHost) Load(dir string) {
	go func() {
		a, err := model.Load(dir)
		h.mu.Lock()
		defer h.mu.Unlock()
		if err != nil {
			h.loadErr = err
			log.Printf("[ModelHost] Load failed: %v", err)
			return
		}
		h.artifact = a
		log.Printf("[ModelHost] Model loaded (%d features, threshold %.3f)",
			len(a.Meta.FeatureNames), a.Meta.Threshold())
	}()
}

// SetArtifact installs an already-loaded artifact.
func (h *ModelHost) SetArtifact(a *model.Artifact) {
	h.mu.Lock()
	h.artifact = a
	h.loadErr = nil
	h.mu.Unlock()
}

// Ready reports whether an artifact is installed.
func (h *ModelHost) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.artifact != nil
}

// LoadErr returns the load failure, if any.
func (h *ModelHost) LoadErr() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loadErr
}

// Score extracts features, standardizes, and runs the predictor.
func (h *ModelHost) Score(rawURL string) (probability, threshold float64, err error) {
	h.mu.RLock()
	a := h.artifact
	h.mu.RUnlock()
	if a == nil {
		return 0, 0, ErrNotReady
	}

	rec := h.extractor.Extract(rawURL)
	vec := model.InputVector(rec, a.Meta)
	p, err := a.Predictor.Predict(vec)
	if err != nil {
		return 0, 0, fmt.Errorf("predict: %w", err)
	}
	return p, a.Meta.Threshold(), nil
}

// Predict scores rawURL and classifies the result. This is the direct
// path used by the HTTP prediction endpoints.
func (h *ModelHost) Predict(rawURL string, now time.Time) (*verdict.Verdict, error) {
	p, thr, err := h.Score(rawURL)
	if err != nil {
		return nil, err
	}
	return verdict.Classify(p, thr, verdict.SourceLocal, now), nil
}

// Features returns the raw extracted record, used by the debug endpoint.
func (h *ModelHost) Features(rawURL string) features.Record {
	return h.extractor.Extract(rawURL)
}

// Metadata returns the loaded metadata, or nil before Load completes.
func (h *ModelHost) Metadata() *model.Metadata {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.artifact == nil {
		return nil
	}
	return h.artifact.Meta
}

// Requests is the scoring mailbox consumed by Serve.
func (h *ModelHost) Requests() chan<- ScoreRequest {
	return h.requests
}

// Serve answers scoring requests until ctx is cancelled. Replies reuse
// the request ID so callers can reject stale answers.
func (h *ModelHost) Serve(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-h.requests:
			p, thr, err := h.Score(req.URL)
			select {
			case req.Reply <- ScoreReply{ID: req.ID, Probability: p, Threshold: thr, Err: err}:
			default:
			}
		}
	}
}

// LocalTier scores with the in-process model through the host mailbox,
// bounded by a round-trip budget.
type LocalTier struct {
	host    *ModelHost
	timeout time.Duration
	now     func() time.Time
}

// NewLocalTier wraps host with the given round-trip budget.
func NewLocalTier(host *ModelHost, timeout time.Duration) *LocalTier {
	return &LocalTier{host: host, timeout: timeout, now: time.Now}
}

// Name identifies the tier in logs and verdict sources.
func (t *LocalTier) Name() string { return verdict.SourceLocal }

// Check scores rawURL or declines when the model is not loaded or the
// budget expires.
func (t *LocalTier) Check(ctx context.Context, rawURL string) (*verdict.Verdict, error) {
	if !t.host.Ready() {
		return nil, ErrNotReady
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req := ScoreRequest{
		ID:    uuid.NewString(),
		URL:   rawURL,
		Reply: make(chan ScoreReply, 1),
	}

	select {
	case t.host.Requests() <- req:
	case <-ctx.Done():
		return nil, fmt.Errorf("local model busy: %w", ctx.Err())
	}

	select {
	case rep := <-req.Reply:
		if rep.ID != req.ID {
			return nil, fmt.Errorf("local model reply correlation mismatch")
		}
		if rep.Err != nil {
			return nil, rep.Err
		}
		return verdict.Classify(rep.Probability, rep.Threshold, verdict.SourceLocal, t.now()), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("local model timed out: %w", ctx.Err())
	}
}
