package capture

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

func openStore(t *testing.T, sampling float64) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "data", "captures.db"), SamplingPercentage: sampling})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndList(t *testing.T) {
	s := openStore(t, 100)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, ports.CaptureRecord{
		InferenceID: "first",
		CapturedAt:  base,
		Input:       domain.RawPair{S1: "the cat sat", S2: "the dog sat"},
		Features:    domain.MetricVector{0.1, 0.2, 0.3},
		Decision:    &domain.Decision{Label: 1, Score: 0.9},
	}))
	require.NoError(t, s.Save(ctx, ports.CaptureRecord{
		InferenceID: "second",
		CapturedAt:  base.Add(time.Minute),
		Input:       domain.RawPair{S1: "a", S2: "b"},
		Features:    domain.MetricVector{1, 0, 1},
	}))

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].InferenceID)
	assert.Nil(t, entries[0].Decision)

	rec, err := entries[1].Record()
	require.NoError(t, err)
	assert.Equal(t, domain.RawPair{S1: "the cat sat", S2: "the dog sat"}, rec.Input)
	assert.Equal(t, domain.MetricVector{0.1, 0.2, 0.3}, rec.Features)
	require.NotNil(t, rec.Decision)
	assert.Equal(t, 1.0, rec.Decision.Label)
	assert.True(t, base.Equal(rec.CapturedAt))

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSaveReplacesSameID(t *testing.T) {
	s := openStore(t, 100)
	ctx := context.Background()

	for _, label := range []float64{0, 1} {
		require.NoError(t, s.Save(ctx, ports.CaptureRecord{
			InferenceID: "dup",
			Features:    domain.MetricVector{label},
			Decision:    &domain.Decision{Label: label},
		}))
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, ok, err := s.Get(ctx, "dup")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, e.Decision.Label)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveRequiresID(t *testing.T) {
	s := openStore(t, 100)
	assert.Error(t, s.Save(context.Background(), ports.CaptureRecord{Features: domain.MetricVector{1}}))
}

func TestSampling(t *testing.T) {
	ctx := context.Background()

	none := openStore(t, 0)
	require.NoError(t, none.Save(ctx, ports.CaptureRecord{InferenceID: "x", Features: domain.MetricVector{1}}))
	n, err := none.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	half := openStore(t, 50)
	draws := []float64{0.1, 0.9}
	half.sample = func() float64 {
		v := draws[0]
		draws = draws[1:]
		return v
	}
	require.NoError(t, half.Save(ctx, ports.CaptureRecord{InferenceID: "kept", Features: domain.MetricVector{1}}))
	require.NoError(t, half.Save(ctx, ports.CaptureRecord{InferenceID: "dropped", Features: domain.MetricVector{1}}))
	n, err = half.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{Path: "x.db", SamplingPercentage: 101}.Validate())
	assert.NoError(t, Config{Path: "x.db", SamplingPercentage: 20}.Validate())
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captures.db")
	ctx := context.Background()

	s, err := Open(Config{Path: path, SamplingPercentage: 100})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, ports.CaptureRecord{InferenceID: "keep", Features: domain.MetricVector{0.5}}))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: path, SamplingPercentage: 100})
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
