package gopairfeatures

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	e, err := New(append([]Option{WithoutLogging()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestExtractReferenceVector(t *testing.T) {
	e := newTestExtractor(t)

	res, err := e.Extract(context.Background(), "the cat sat", "the dog sat")
	require.NoError(t, err)

	assert.Equal(t, ReferenceMetrics(), res.Names)
	assert.Equal(t, []string{"the", "cat", "sat", "dog"}, res.Vocabulary)
	require.Len(t, res.Features, 23)
	assert.Equal(t, 1, res.Repaired)

	byName := map[string]float64{}
	for i, name := range res.Names {
		byName[name] = res.Features[i]
	}
	assert.InDelta(t, 0.64853, byName["euclidean"], 1e-9)
	assert.InDelta(t, 1.0, byName["l1"], 1e-9)
	assert.InDelta(t, 0.0, byName["cosine"], 1e-9)
	assert.InDelta(t, 0.4, byName["chebyshev"], 1e-9)
	assert.InDelta(t, 0.46116, byName["seuclidean"], 1e-4)

	for i, v := range res.Features {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "slot %d is not finite", i)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestExtractIdenticalTextsFillsEverySlot(t *testing.T) {
	e := newTestExtractor(t)

	res, err := e.Extract(context.Background(), "same words", "same words")
	require.NoError(t, err)
	assert.Equal(t, 23, res.Repaired)
	for _, v := range res.Features {
		assert.Equal(t, 0.0, v)
	}
}

func TestExtractIdenticalTextsStayInCustomRange(t *testing.T) {
	e := newTestExtractor(t, WithFeatureRange(1, 2))

	res, err := e.Extract(context.Background(), "x", "x")
	require.NoError(t, err)
	assert.Equal(t, 23, res.Repaired)
	for _, v := range res.Features {
		assert.Equal(t, 1.0, v)
	}

	e = newTestExtractor(t, WithFeatureRange(1, 2), WithFillValue(1.5))
	res, err = e.Extract(context.Background(), "x", "x")
	require.NoError(t, err)
	for _, v := range res.Features {
		assert.Equal(t, 1.5, v)
	}
}

func TestExtractPropagatePolicy(t *testing.T) {
	e := newTestExtractor(t, WithRepairPolicy("propagate"))

	res, err := e.Extract(context.Background(), "same words", "same words")
	require.NoError(t, err)
	for _, v := range res.Features {
		assert.True(t, math.IsNaN(v))
	}
}

func TestCustomMetrics(t *testing.T) {
	e := newTestExtractor(t, WithMetrics("cosine", "l1", "jaccard"), WithPrecision(2))

	assert.Equal(t, []string{"cosine", "l1", "jaccard"}, e.MetricNames())

	res, err := e.Extract(context.Background(), "a b c", "a b d")
	require.NoError(t, err)
	require.Len(t, res.Features, 3)
	require.Len(t, res.Raw, 3)
}

func TestNewRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"unknown metric", []Option{WithMetrics("levenshtein")}},
		{"unknown policy", []Option{WithRepairPolicy("drop")}},
		{"inverted range", []Option{WithFeatureRange(1, 0)}},
		{"negative precision", []Option{WithPrecision(-1)}},
		{"infinite fill", []Option{WithFillValue(math.Inf(1))}},
		{"fill outside range", []Option{WithFeatureRange(1, 2), WithFillValue(0)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(append([]Option{WithoutLogging()}, tc.opts...)...)
			assert.Error(t, err)
		})
	}
}

func TestNormalizersAgree(t *testing.T) {
	def := newTestExtractor(t, WithDefaultNormalizer())
	opt := newTestExtractor(t, WithOptimizedNormalizer())

	s1 := "Hello, World! It's a test."
	s2 := "hello world, its another TEST"
	a, err := def.Extract(context.Background(), s1, s2)
	require.NoError(t, err)
	b, err := opt.Extract(context.Background(), s1, s2)
	require.NoError(t, err)

	assert.Equal(t, a.Vocabulary, b.Vocabulary)
	assert.Equal(t, a.Features, b.Features)
}

func TestExtractJSON(t *testing.T) {
	e := newTestExtractor(t)

	res, err := e.ExtractJSON(context.Background(), []byte(`{"s1":"the cat sat","s2":"the dog sat","extra":1}`))
	require.NoError(t, err)
	assert.Len(t, res.Features, 23)

	_, err = e.ExtractJSON(context.Background(), []byte(`{"s1":"only one"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedInput))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "s2", verr.Field)
}

func TestExtractCancelled(t *testing.T) {
	e := newTestExtractor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, "a", "b")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWarmUpOption(t *testing.T) {
	cfg := DefaultWarmupConfig()
	cfg.Concurrency = 2
	cfg.Iterations = 5
	cfg.ForceGC = false

	e := newTestExtractor(t, WithWarmUpConfig(cfg))
	res, err := e.Extract(context.Background(), "the cat sat", "the dog sat")
	require.NoError(t, err)
	assert.Len(t, res.Features, 23)
}

func TestExtractConcurrent(t *testing.T) {
	e := newTestExtractor(t, WithOptimizedNormalizer())
	want, err := e.Extract(context.Background(), "the cat sat", "the dog sat")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := e.Extract(context.Background(), "the cat sat", "the dog sat")
				assert.NoError(t, err)
				assert.Equal(t, want.Features, got.Features)
			}
		}()
	}
	wg.Wait()
}
