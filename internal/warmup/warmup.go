// Package warmup runs the hot paths before serving so that the buffer pools
// are primed for the first requests.
package warmup

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

// WarmupConfig defines configuration for warming up the system
type WarmupConfig struct {
	// Number of concurrent warmup routines to run
	Concurrency int
	// Number of iterations per routine
	Iterations int
	// Sample text size for warmup
	SampleTextSize int
	// Warmup duration (0 means no time limit)
	Duration time.Duration
	// Whether to perform GC after warmup
	ForceGC bool
}

// DefaultWarmupConfig returns the default warmup configuration
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Concurrency:    runtime.NumCPU(),
		Iterations:     100,
		SampleTextSize: 400,
		Duration:       5 * time.Second,
		ForceGC:        true,
	}
}

// Stats summarizes a warmup run.
type Stats struct {
	Normalizations int64
	Extractions    int64
	Failures       int64
	Duration       time.Duration
}

// Manager handles system warmup operations
type Manager struct {
	logger      ports.Logger
	extractors  []ports.FeatureExtractor
	normalizers []ports.Normalizer
	config      WarmupConfig
}

// NewManager creates a new warmup manager
func NewManager(logger ports.Logger, config WarmupConfig) *Manager {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Manager{
		logger: logger,
		config: config,
	}
}

// RegisterExtractor adds a feature extractor to be warmed up
func (wm *Manager) RegisterExtractor(ext ports.FeatureExtractor) {
	wm.extractors = append(wm.extractors, ext)
}

// RegisterNormalizer adds a normalizer to be warmed up
func (wm *Manager) RegisterNormalizer(norm ports.Normalizer) {
	wm.normalizers = append(wm.normalizers, norm)
}

// WarmUp runs the warmup process for all registered components
func (wm *Manager) WarmUp(ctx context.Context) Stats {
	startTime := time.Now()
	wm.logger.Info("Starting system warmup",
		"components", len(wm.extractors)+len(wm.normalizers),
		"concurrency", wm.config.Concurrency,
		"iterations", wm.config.Iterations,
	)

	warmupCtx := ctx
	if wm.config.Duration > 0 {
		var cancel context.CancelFunc
		warmupCtx, cancel = context.WithTimeout(ctx, wm.config.Duration)
		defer cancel()
	}

	var stats Stats
	stats.Normalizations = wm.warmUpNormalizers(warmupCtx)
	stats.Extractions, stats.Failures = wm.warmUpExtractors(warmupCtx)

	if wm.config.ForceGC {
		wm.logger.Debug("Forcing garbage collection after warmup")
		runtime.GC()
	}

	stats.Duration = time.Since(startTime)
	wm.logger.Info("System warmup completed",
		"duration", stats.Duration,
		"normalizations", stats.Normalizations,
		"extractions", stats.Extractions,
		"failures", stats.Failures,
	)
	return stats
}

func (wm *Manager) warmUpNormalizers(ctx context.Context) int64 {
	if len(wm.normalizers) == 0 {
		return 0
	}

	wm.logger.Debug("Warming up normalizers", "count", len(wm.normalizers))
	sampleText := generateSampleText(wm.config.SampleTextSize)

	var done atomic.Int64
	wm.run(ctx, func(int) {
		for _, normalizer := range wm.normalizers {
			_ = normalizer.Bag(sampleText)
			done.Add(1)
		}
	})
	return done.Load()
}

func (wm *Manager) warmUpExtractors(ctx context.Context) (int64, int64) {
	if len(wm.extractors) == 0 {
		return 0, 0
	}

	wm.logger.Debug("Warming up extractors", "count", len(wm.extractors))

	original := generateSampleText(wm.config.SampleTextSize)
	pairs := []domain.RawPair{
		{S1: original, S2: original},
		{S1: original, S2: generateSimilarText(original, 0.1)},
		{S1: original, S2: generateSimilarText(original, 0.5)},
		{S1: original, S2: ""},
	}

	var done, failed atomic.Int64
	wm.run(ctx, func(j int) {
		pair := pairs[j%len(pairs)]
		for _, extractor := range wm.extractors {
			if _, err := extractor.Compute(ctx, pair); err != nil {
				failed.Add(1)
				continue
			}
			done.Add(1)
		}
	})
	return done.Load(), failed.Load()
}

// run calls step Iterations times on each of Concurrency goroutines, or
// until ctx is done.
func (wm *Manager) run(ctx context.Context, step func(iteration int)) {
	var g errgroup.Group
	for i := 0; i < wm.config.Concurrency; i++ {
		g.Go(func() error {
			for j := 0; j < wm.config.Iterations; j++ {
				if ctx.Err() != nil {
					return nil
				}
				step(j)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func generateSampleText(size int) string {
	words := []string{
		"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog",
		"a", "man", "is", "playing", "flute", "woman", "slicing", "onion",
		"cat", "sat", "on", "mat", "two", "people", "walk", "beach",
	}

	var sb strings.Builder
	wordsNeeded := size / 5

	for i := 0; i < wordsNeeded; i++ {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(words[i%len(words)])
		if i%7 == 6 {
			sb.WriteString(".")
		}
	}

	result := sb.String()
	if len(result) > size {
		return result[:size]
	}
	return result
}

func generateSimilarText(original string, diffRatio float64) string {
	words := strings.Fields(original)
	changeCount := int(float64(len(words)) * diffRatio)

	replacements := []string{
		"replaced", "modified", "changed", "altered", "updated",
		"different", "unique", "new", "fresh", "novel",
	}

	newWords := make([]string, len(words))
	copy(newWords, words)
	for i := 0; i < changeCount && i < len(newWords); i++ {
		newWords[i] = replacements[i%len(replacements)]
	}

	return strings.Join(newWords, " ")
}
