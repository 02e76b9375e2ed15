// Package classifier provides the model adapters that turn a feature vector
// into a decision.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
)

// ErrDimension reports a feature vector whose length does not match the model.
var ErrDimension = errors.New("classifier: feature dimension mismatch")

// Artifact is the on-disk form of a linear model.
type Artifact struct {
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Intercept    float64   `json:"intercept"`
	// Threshold applies to the logistic score; defaults to 0.5.
	Threshold *float64 `json:"threshold,omitempty"`
	// Labels maps the negative and positive class; defaults to [0, 1].
	Labels []float64 `json:"labels,omitempty"`
}

// Linear is a logistic-regression classifier. It is immutable after load.
type Linear struct {
	names     []string
	weights   []float64
	intercept float64
	threshold float64
	labels    [2]float64
}

// NewLinear validates an artifact and builds the classifier.
func NewLinear(a Artifact) (*Linear, error) {
	if len(a.Weights) == 0 {
		return nil, errors.New("classifier: artifact has no weights")
	}
	if len(a.FeatureNames) != 0 && len(a.FeatureNames) != len(a.Weights) {
		return nil, fmt.Errorf("classifier: %d feature names for %d weights", len(a.FeatureNames), len(a.Weights))
	}
	for i, w := range a.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("classifier: weight %d is not finite", i)
		}
	}

	threshold := 0.5
	if a.Threshold != nil {
		threshold = *a.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, errors.New("classifier: threshold must be between 0 and 1")
	}

	labels := [2]float64{0, 1}
	switch len(a.Labels) {
	case 0:
	case 2:
		labels = [2]float64{a.Labels[0], a.Labels[1]}
	default:
		return nil, errors.New("classifier: labels must hold exactly two values")
	}

	return &Linear{
		names:     append([]string(nil), a.FeatureNames...),
		weights:   append([]float64(nil), a.Weights...),
		intercept: a.Intercept,
		threshold: threshold,
		labels:    labels,
	}, nil
}

// LoadLinear reads a JSON artifact from path.
func LoadLinear(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: reading artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("classifier: decoding artifact %s: %w", path, err)
	}
	return NewLinear(a)
}

// CheckFeatures verifies that the model was trained on the given metric list.
func (m *Linear) CheckFeatures(names []string) error {
	if len(names) != len(m.weights) {
		return fmt.Errorf("%w: model expects %d features, extractor produces %d", ErrDimension, len(m.weights), len(names))
	}
	for i, name := range m.names {
		if names[i] != name {
			return fmt.Errorf("classifier: feature %d is %q, model expects %q", i, names[i], name)
		}
	}
	return nil
}

// Predict returns the label and the logistic score for features.
func (m *Linear) Predict(ctx context.Context, features domain.MetricVector) (domain.Decision, error) {
	if err := ctx.Err(); err != nil {
		return domain.Decision{}, err
	}
	if len(features) != len(m.weights) {
		return domain.Decision{}, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(features), len(m.weights))
	}

	z := floats.Dot(m.weights, features) + m.intercept
	score := 1 / (1 + math.Exp(-z))

	label := m.labels[0]
	if score >= m.threshold {
		label = m.labels[1]
	}
	return domain.Decision{
		Label: label,
		Score: score,
		Raw:   strconv.FormatFloat(label, 'f', -1, 64),
	}, nil
}
