// Package pipeline wires normalization, vocabulary alignment, the metric
// engine and post-processing into one request-scoped computation.
package pipeline

import (
	"context"
	"fmt"

	"github.com/baditaflorin/go_pair_features/internal/core/distance"
	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/core/scaling"
	"github.com/baditaflorin/go_pair_features/internal/core/vocab"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

// ResultName identifies results produced by this calculator.
const ResultName = "pair_features"

// Config holds configuration for the feature calculator.
type Config struct {
	Distance distance.Config
	Scaling  scaling.Config
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Distance: distance.DefaultConfig(),
		Scaling:  scaling.DefaultConfig(),
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if err := c.Distance.Validate(); err != nil {
		return fmt.Errorf("distance: %w", err)
	}
	if err := c.Scaling.Validate(); err != nil {
		return fmt.Errorf("scaling: %w", err)
	}
	return nil
}

// Calculator implements the feature extraction for a text pair.
type Calculator struct {
	config     Config
	engine     *distance.Engine
	logger     ports.Logger
	normalizer ports.Normalizer
}

// NewCalculator creates a new feature calculator.
func NewCalculator(config Config, logger ports.Logger, normalizer ports.Normalizer) (*Calculator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	engine, err := distance.NewEngine(config.Distance)
	if err != nil {
		return nil, err
	}

	return &Calculator{
		config:     config,
		engine:     engine,
		logger:     logger,
		normalizer: normalizer,
	}, nil
}

// MetricNames returns the name of every slot of the feature vector.
func (c *Calculator) MetricNames() []string {
	return c.engine.Names()
}

// Compute runs the pipeline for one pair. The only error it returns is the
// context's.
func (c *Calculator) Compute(ctx context.Context, pair domain.RawPair) (domain.Result, error) {
	c.logger.Debug("Starting feature extraction",
		"s1_len", len(pair.S1),
		"s2_len", len(pair.S2),
	)

	bag1 := c.normalizer.Bag(pair.S1)
	bag2 := c.normalizer.Bag(pair.S2)

	select {
	case <-ctx.Done():
		c.logger.Error("Computation cancelled", "error", ctx.Err())
		return domain.Result{Name: ResultName}, fmt.Errorf("feature extraction: %w", ctx.Err())
	default:
		// continue
	}

	shared := vocab.Unify(bag1, bag2)
	counts1 := vocab.Vectorize(bag1, shared)
	counts2 := vocab.Vectorize(bag2, shared)

	c.logger.Debug("Vectorized texts",
		"vocabulary_size", len(shared),
		"distinct_s1", bag1.Len(),
		"distinct_s2", bag2.Len(),
	)

	raw := c.engine.Compute(counts1.Floats(), counts2.Floats())
	scaled, features, repaired := c.config.Scaling.Apply(raw)

	if repaired > 0 {
		c.logger.Debug("Repaired non-finite features",
			"repaired", repaired,
			"metrics", len(features),
		)
	}

	details := map[string]interface{}{
		"vocabulary_size": len(shared),
		"metric_count":    len(features),
		"repaired":        repaired,
		"binarized":       c.config.Distance.BinarizeSetMetrics,
	}

	return domain.Result{
		Name:       ResultName,
		Vocabulary: shared,
		Counts1:    counts1,
		Counts2:    counts2,
		Raw:        raw,
		Scaled:     scaled,
		Features:   features,
		Repaired:   repaired,
		Details:    details,
	}, nil
}
