package tiers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phishguard/phishguard/pkg/features"
	"github.com/phishguard/phishguard/pkg/model"
	"github.com/phishguard/phishguard/pkg/verdict"
)

func stubArtifact(p float64, threshold float64) *model.Artifact {
	return &model.Artifact{
		Meta: &model.Metadata{
			FeatureNames:     features.FieldNames,
			OptimalThreshold: threshold,
		},
		Predictor: model.PredictorFunc(func(vec []float64) (float64, error) {
			return p, nil
		}),
	}
}

func TestLocalTierNotReady(t *testing.T) {
	host := NewModelHost(features.Extractor{})
	tier := NewLocalTier(host, time.Second)

	_, err := tier.Check(context.Background(), "http://example.com/")
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady before load, got %v", err)
	}
}

func TestLocalTierScores(t *testing.T) {
	host := NewModelHost(features.Extractor{})
	host.SetArtifact(stubArtifact(0.9, 0.25))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go host.Serve(ctx)

	tier := NewLocalTier(host, time.Second)
	v, err := tier.Check(ctx, "http://secure-login-verify.tk/account")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Status != verdict.StatusPhishing {
		t.Errorf("status: got %s, want phishing", v.Status)
	}
	if v.Source != verdict.SourceLocal {
		t.Errorf("source: got %s", v.Source)
	}
	if v.Threshold != 0.25 {
		t.Errorf("threshold: got %v", v.Threshold)
	}
}

func TestLocalTierTimeout(t *testing.T) {
	// Host is ready but nobody serves the mailbox.
	host := NewModelHost(features.Extractor{})
	host.SetArtifact(stubArtifact(0.5, 0.25))

	tier := NewLocalTier(host, 20*time.Millisecond)
	_, err := tier.Check(context.Background(), "http://example.com/")
	if err == nil {
		t.Fatal("expected timeout error without a serve loop")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestModelHostPredict(t *testing.T) {
	host := NewModelHost(features.Extractor{})
	host.SetArtifact(stubArtifact(0.1, 0.25))

	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	v, err := host.Predict("http://example.com/", now)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if v.Status != verdict.StatusUnknown {
		t.Errorf("0.1 below threshold but under the safe cutoff: got %s", v.Status)
	}
	if !v.Timestamp.Equal(now) {
		t.Errorf("timestamp not propagated: %v", v.Timestamp)
	}
}

func TestModelHostLoadError(t *testing.T) {
	host := NewModelHost(features.Extractor{})
	host.Load(t.TempDir())

	deadline := time.After(2 * time.Second)
	for host.LoadErr() == nil {
		select {
		case <-deadline:
			t.Fatal("expected load error for empty artifact dir")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if host.Ready() {
		t.Error("host must not report ready after a failed load")
	}
}
