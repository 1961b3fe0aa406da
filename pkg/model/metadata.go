// Package model holds the scoring model contract: metadata describing the
// feature order and scaler statistics, the vectorizer that turns a feature
// record into a standardized input vector, and the Predictor interface the
// tiers score through. The model internals are deliberately opaque - any
// implementation of Predictor can be swapped in without touching the rest of
// the pipeline.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phishguard/phishguard/pkg/features"
)

// DefaultThreshold is used when the metadata document carries no trained
// cutoff.
const DefaultThreshold = 0.25

// Metadata describes the trained artifact: which features it expects, in
// which order, the per-feature standardization statistics, and the
// probability cutoff selected during training. Loaded once per process and
// treated as immutable.
type Metadata struct {
	FeatureNames     []string  `json:"feature_names"`
	ScalerMean       []float64 `json:"scaler_mean"`
	ScalerScale      []float64 `json:"scaler_scale"`
	OptimalThreshold float64   `json:"optimal_threshold"`
}

// Threshold returns the trained cutoff, falling back to DefaultThreshold
// when the metadata is nil or carries none.
func (m *Metadata) Threshold() float64 {
	if m == nil || m.OptimalThreshold <= 0 {
		return DefaultThreshold
	}
	return m.OptimalThreshold
}

// LoadMetadata reads a metadata.json document.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if len(m.FeatureNames) == 0 {
		return nil, fmt.Errorf("metadata has no feature_names")
	}
	return &m, nil
}

// InputVector builds the positional input vector for the model: for each
// name in meta.FeatureNames, the record value (0 when absent) standardized
// by the per-index mean and scale. A zero scale is guarded to 1. The result
// always has length len(meta.FeatureNames) - order is authoritative, the
// vector is positional.
func InputVector(rec features.Record, meta *Metadata) []float64 {
	vec := make([]float64, len(meta.FeatureNames))
	for i, name := range meta.FeatureNames {
		val := rec[name]
		var mean, scale float64
		if i < len(meta.ScalerMean) {
			mean = meta.ScalerMean[i]
		}
		if i < len(meta.ScalerScale) {
			scale = meta.ScalerScale[i]
		}
		if scale == 0 {
			scale = 1
		}
		vec[i] = (val - mean) / scale
	}
	return vec
}

// Artifact bundles the metadata with a ready Predictor, loaded from a model
// directory holding metadata.json and model.json.
type Artifact struct {
	Meta      *Metadata
	Predictor Predictor
}

// Load reads a model directory. The layout mirrors the exported training
// artifact: metadata.json (feature order + scaler) next to model.json (the
// serialized model itself).
func Load(dir string) (*Artifact, error) {
	meta, err := LoadMetadata(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, err
	}
	p, err := LoadPredictor(filepath.Join(dir, "model.json"), len(meta.FeatureNames))
	if err != nil {
		return nil, err
	}
	return &Artifact{Meta: meta, Predictor: p}, nil
}
