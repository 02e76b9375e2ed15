// Package gopairfeatures turns a pair of short texts into a fixed-length,
// ordered vector of distance features suitable for a downstream classifier.
//
// Each text is stripped of ASCII punctuation and split on whitespace into a
// bag of words. Case is preserved, so "The" and "the" are different words.
// Both bags are projected onto their shared vocabulary and compared with a
// configurable list of distance metrics. The resulting vector is min-max
// scaled to [0, 1], rounded, and repaired so that every slot is finite.
//
// This version uses the functional options pattern to configure the metric
// list, the post-processing and logging.
package gopairfeatures

import (
	"context"

	"github.com/baditaflorin/go_pair_features/internal/adapters/normalizer"
	"github.com/baditaflorin/go_pair_features/internal/adapters/payload"
	"github.com/baditaflorin/go_pair_features/internal/core/distance"
	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/core/pipeline"
	"github.com/baditaflorin/go_pair_features/internal/core/scaling"
	"github.com/baditaflorin/go_pair_features/internal/ports"
	"github.com/baditaflorin/go_pair_features/internal/warmup"
)

// ErrMalformedInput is returned by ExtractJSON for payloads that cannot be
// processed. Use errors.Is to test for it.
var ErrMalformedInput = domain.ErrMalformedInput

// ValidationError describes why a payload was rejected.
type ValidationError = domain.ValidationError

// WarmupConfig controls the warm-up run started by WithWarmUp.
type WarmupConfig = warmup.WarmupConfig

// DefaultWarmupConfig returns the default warm-up configuration.
func DefaultWarmupConfig() WarmupConfig {
	return warmup.DefaultWarmupConfig()
}

// ReferenceMetrics returns the default ordered metric list.
func ReferenceMetrics() []string {
	return append([]string(nil), distance.ReferenceNames...)
}

// Result holds the outcome of a feature extraction.
type Result struct {
	// Names labels each slot of Features.
	Names []string
	// Features is the final vector, one value per metric.
	Features []float64
	// Raw holds the metric values before scaling.
	Raw []float64
	// Vocabulary is the ordered union of the words of both texts.
	Vocabulary []string
	// Repaired is the number of non-finite slots that were replaced.
	Repaired int
	// Details holds additional diagnostic information.
	Details map[string]interface{}
}

type extractorConfig struct {
	pipeline     pipeline.Config
	logger       ports.Logger
	normalizer   ports.Normalizer
	warmUp       bool
	warmUpConfig warmup.WarmupConfig
	err          error
}

// Option defines a functional option for configuring an Extractor.
type Option func(*extractorConfig)

// WithMetrics sets the ordered list of metrics. The order defines the layout
// of the feature vector.
func WithMetrics(names ...string) Option {
	return func(cfg *extractorConfig) {
		cfg.pipeline.Distance.Metrics = append([]string(nil), names...)
	}
}

// WithMinkowskiP sets the order of the minkowski metric.
func WithMinkowskiP(p float64) Option {
	return func(cfg *extractorConfig) {
		cfg.pipeline.Distance.MinkowskiP = p
	}
}

// WithBinarizeSetMetrics makes the set metrics (dice, jaccard, yule, ...)
// see word presence instead of word counts.
func WithBinarizeSetMetrics(enable bool) Option {
	return func(cfg *extractorConfig) {
		cfg.pipeline.Distance.BinarizeSetMetrics = enable
	}
}

// WithFeatureRange sets the target range of the min-max scaling.
func WithFeatureRange(low, high float64) Option {
	return func(cfg *extractorConfig) {
		cfg.pipeline.Scaling.Low = low
		cfg.pipeline.Scaling.High = high
	}
}

// WithPrecision sets the number of decimals kept after scaling.
func WithPrecision(digits int) Option {
	return func(cfg *extractorConfig) {
		cfg.pipeline.Scaling.Precision = digits
	}
}

// WithRepairPolicy selects what happens when no slot is finite. Both policies
// replace non-finite slots with the mean of the finite ones. When there is
// none, "fill" (the default) writes the fill value and "propagate" leaves NaN.
func WithRepairPolicy(policy string) Option {
	return func(cfg *extractorConfig) {
		p, err := scaling.ParsePolicy(policy)
		if err != nil {
			cfg.err = err
			return
		}
		cfg.pipeline.Scaling.Policy = p
	}
}

// WithFillValue sets the value used when no slot is finite. It must lie inside
// the feature range and defaults to its lower bound.
func WithFillValue(v float64) Option {
	return func(cfg *extractorConfig) {
		cfg.pipeline.Scaling.FillValue = &v
	}
}

// WithDefaultNormalizer uses the straightforward strip-and-split normalizer.
func WithDefaultNormalizer() Option {
	return func(cfg *extractorConfig) {
		cfg.normalizer = normalizer.NewNormalizerFactory().CreateNormalizer(normalizer.DefaultNormalizerType)
	}
}

// WithOptimizedNormalizer uses the single-pass pooled normalizer.
func WithOptimizedNormalizer() Option {
	return func(cfg *extractorConfig) {
		cfg.normalizer = normalizer.NewNormalizerFactory().CreateNormalizer(normalizer.OptimizedNormalizerType)
	}
}

// WithWarmUp enables warm-up on initialization.
func WithWarmUp(enable bool) Option {
	return func(cfg *extractorConfig) {
		cfg.warmUp = enable
	}
}

// WithWarmUpConfig sets a custom warm-up configuration.
func WithWarmUpConfig(config WarmupConfig) Option {
	return func(cfg *extractorConfig) {
		cfg.warmUpConfig = config
		cfg.warmUp = true
	}
}

// Extractor computes feature vectors. It is safe for concurrent use.
type Extractor struct {
	calculator *pipeline.Calculator
	logger     ports.Logger
	normalizer ports.Normalizer
}

// New creates an Extractor. Without options it computes the reference metric
// set with the default post-processing.
func New(opts ...Option) (*Extractor, error) {
	cfg := &extractorConfig{
		pipeline:     pipeline.DefaultConfig(),
		warmUpConfig: warmup.DefaultWarmupConfig(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}

	if cfg.logger == nil {
		logger, err := newDefaultLogger()
		if err != nil {
			return nil, err
		}
		cfg.logger = logger
	}
	if cfg.normalizer == nil {
		cfg.normalizer = normalizer.NewDefaultNormalizer()
	}

	calculator, err := pipeline.NewCalculator(cfg.pipeline, cfg.logger, cfg.normalizer)
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		calculator: calculator,
		logger:     cfg.logger,
		normalizer: cfg.normalizer,
	}

	if cfg.warmUp {
		m := warmup.NewManager(cfg.logger, cfg.warmUpConfig)
		m.RegisterNormalizer(cfg.normalizer)
		m.RegisterExtractor(calculator)
		m.WarmUp(context.Background())
	}

	return e, nil
}

// MetricNames returns the name of each slot of the feature vector.
func (e *Extractor) MetricNames() []string {
	return e.calculator.MetricNames()
}

// Extract computes the feature vector for s1 and s2. The only possible error
// is ctx's.
func (e *Extractor) Extract(ctx context.Context, s1, s2 string) (Result, error) {
	res, err := e.calculator.Compute(ctx, domain.RawPair{S1: s1, S2: s2})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Names:      e.calculator.MetricNames(),
		Features:   res.Features,
		Raw:        res.Raw,
		Vocabulary: res.Vocabulary,
		Repaired:   res.Repaired,
		Details:    res.Details,
	}, nil
}

// ExtractJSON decodes a {"s1": ..., "s2": ...} payload and extracts its
// features. Payload errors wrap ErrMalformedInput.
func (e *Extractor) ExtractJSON(ctx context.Context, data []byte) (Result, error) {
	pair, err := payload.Decode(data)
	if err != nil {
		return Result{}, err
	}
	return e.Extract(ctx, pair.S1, pair.S2)
}

// Close releases the logger.
func (e *Extractor) Close() error {
	return e.logger.Close()
}
