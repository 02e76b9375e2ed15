package ports

import (
	"context"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
)

// FeatureExtractor defines the interface for turning a text pair into features.
type FeatureExtractor interface {
	Compute(ctx context.Context, pair domain.RawPair) (domain.Result, error)
}
