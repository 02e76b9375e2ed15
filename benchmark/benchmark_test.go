package benchmark

import (
	"context"
	"strings"
	"testing"

	gopairfeatures "github.com/baditaflorin/go_pair_features"
	"github.com/baditaflorin/go_pair_features/internal/adapters/normalizer"
	"github.com/baditaflorin/go_pair_features/internal/core/distance"
	"github.com/baditaflorin/go_pair_features/internal/core/vocab"
)

// generateText creates a text of the specified size by repeating a sample text
func generateText(size int) string {
	if size <= 0 {
		return ""
	}

	sample := "The quick brown fox jumps over the lazy dog. This sentence contains all letters of the English alphabet and is commonly used for testing text processing algorithms and systems."
	var sb strings.Builder
	sb.Grow(size)

	for sb.Len() < size {
		sb.WriteString(sample)
		sb.WriteString(" ")
	}

	if sb.Len() > size {
		return sb.String()[:size]
	}
	return sb.String()
}

// BenchmarkNormalizers compares the normalizer implementations
func BenchmarkNormalizers(b *testing.B) {
	smallText := generateText(100)
	mediumText := generateText(10000)
	largeText := generateText(100000)

	factory := normalizer.NewNormalizerFactory()

	benchmarks := []struct {
		name     string
		normType normalizer.NormalizerType
		input    string
	}{
		{"Default-Small", normalizer.DefaultNormalizerType, smallText},
		{"Default-Medium", normalizer.DefaultNormalizerType, mediumText},
		{"Default-Large", normalizer.DefaultNormalizerType, largeText},

		{"Optimized-Small", normalizer.OptimizedNormalizerType, smallText},
		{"Optimized-Medium", normalizer.OptimizedNormalizerType, mediumText},
		{"Optimized-Large", normalizer.OptimizedNormalizerType, largeText},
	}

	for _, bm := range benchmarks {
		norm := factory.CreateNormalizer(bm.normType)

		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(bm.input)))

			for i := 0; i < b.N; i++ {
				_ = norm.Bag(bm.input)
			}
		})
	}
}

// BenchmarkEngine measures the metric engine alone on aligned count vectors
func BenchmarkEngine(b *testing.B) {
	norm := normalizer.NewOptimizedNormalizer()

	for _, size := range []struct {
		name string
		n    int
	}{
		{"Sentence", 120},
		{"Paragraph", 2000},
	} {
		bag1 := norm.Bag(generateText(size.n))
		bag2 := norm.Bag(strings.Replace(generateText(size.n), "the", "a", 3))
		v := vocab.Unify(bag1, bag2)
		u1 := vocab.Vectorize(bag1, v).Floats()
		u2 := vocab.Vectorize(bag2, v).Floats()

		for _, binarizeSets := range []bool{false, true} {
			cfg := distance.DefaultConfig()
			cfg.BinarizeSetMetrics = binarizeSets
			engine, err := distance.NewEngine(cfg)
			if err != nil {
				b.Fatal(err)
			}

			name := size.name
			if binarizeSets {
				name += "-Binarized"
			}
			b.Run(name, func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					_ = engine.Compute(u1, u2)
				}
			})
		}
	}
}

// BenchmarkExtract benchmarks the full pipeline with different configurations
func BenchmarkExtract(b *testing.B) {
	s1 := "Amrozi accused his brother, whom he called \"the witness\", of deliberately distorting his evidence."
	s2 := "Referring to him as only \"the witness\", Amrozi accused his brother of deliberately distorting his evidence."
	ctx := context.Background()

	configs := []struct {
		name string
		opts []gopairfeatures.Option
	}{
		{"Standard", nil},
		{"OptimizedNormalizer", []gopairfeatures.Option{gopairfeatures.WithOptimizedNormalizer()}},
		{"WithWarmUp", []gopairfeatures.Option{gopairfeatures.WithOptimizedNormalizer(), gopairfeatures.WithWarmUp(true)}},
		{"FewMetrics", []gopairfeatures.Option{gopairfeatures.WithMetrics("cosine", "jaccard", "l1")}},
	}

	for _, c := range configs {
		e, err := gopairfeatures.New(append([]gopairfeatures.Option{gopairfeatures.WithoutLogging()}, c.opts...)...)
		if err != nil {
			b.Fatal(err)
		}

		b.Run(c.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := e.Extract(ctx, s1, s2); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkExtractParallel measures throughput under concurrent callers
func BenchmarkExtractParallel(b *testing.B) {
	e, err := gopairfeatures.New(gopairfeatures.WithoutLogging(), gopairfeatures.WithOptimizedNormalizer())
	if err != nil {
		b.Fatal(err)
	}
	s1 := generateText(400)
	s2 := strings.Replace(s1, "fox", "cat", 2)

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			_, _ = e.Extract(ctx, s1, s2)
		}
	})
}
