package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Predictor is the opaque scoring contract: a standardized input vector in,
// a phishing probability in [0,1] out. Implementations must be safe for
// concurrent use.
type Predictor interface {
	Predict(vec []float64) (float64, error)
}

// LogisticModel is the shipped Predictor: a logistic regression over the
// standardized feature vector, serialized as plain JSON weights.
type LogisticModel struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// Predict returns sigmoid(w.v + b).
func (m *LogisticModel) Predict(vec []float64) (float64, error) {
	if len(vec) != len(m.Weights) {
		return 0, fmt.Errorf("input vector length %d, model expects %d", len(vec), len(m.Weights))
	}
	z := m.Bias
	for i, w := range m.Weights {
		z += w * vec[i]
	}
	return 1.0 / (1.0 + math.Exp(-z)), nil
}

// LoadPredictor reads a model.json document and validates it against the
// expected input width from the metadata.
func LoadPredictor(path string, inputLen int) (Predictor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m LogisticModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("model has no weights")
	}
	if len(m.Weights) != inputLen {
		return nil, fmt.Errorf("model expects %d inputs, metadata names %d features", len(m.Weights), inputLen)
	}
	return &m, nil
}

// PredictorFunc adapts a plain function to the Predictor interface. Used by
// tests to stub the model.
type PredictorFunc func(vec []float64) (float64, error)

func (f PredictorFunc) Predict(vec []float64) (float64, error) { return f(vec) }
