package ports

import (
	"context"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
)

// Classifier is the opaque trained model consuming a MetricVector.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Predict(ctx context.Context, features domain.MetricVector) (domain.Decision, error)
}
