package ports

import (
	"context"
	"time"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
)

// CaptureRecord is one observed inference.
type CaptureRecord struct {
	InferenceID string
	CapturedAt  time.Time
	Input       domain.RawPair
	Features    domain.MetricVector
	Decision    *domain.Decision
}

// CaptureStore persists observed inferences for later inspection.
type CaptureStore interface {
	Save(ctx context.Context, rec CaptureRecord) error
	Close() error
}

// Telemetry records request and feature observations.
type Telemetry interface {
	ObserveRequest(endpoint, status string, elapsed time.Duration)
	ObserveFeatures(names []string, features domain.MetricVector, repaired int)
}
