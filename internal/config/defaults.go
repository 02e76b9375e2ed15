package config

import "github.com/baditaflorin/go_pair_features/internal/core/distance"

// Classifier kinds.
const (
	ClassifierNone   = "none"
	ClassifierLinear = "linear"
	ClassifierRemote = "remote"
)

const (
	defaultServerAddr          = ":8080"
	defaultReadTimeoutSeconds  = 10
	defaultWriteTimeoutSeconds = 10
	defaultMaxBodyBytes        = 1 << 20
	defaultConcurrency         = 256 * 1024
	defaultWarmupIterations    = 100
	defaultAccept              = "text/csv"
	defaultClassifierTimeout   = 10
	defaultCapturePath         = "captures/captures.db"
	defaultSamplingPercentage  = 20
	defaultLogLevel            = "info"
	defaultLogFormat           = "text"
	defaultMetricsNamespace    = "pairfeat"
	defaultMetricsServiceName  = "pair-features"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Features: Features{
			Metrics:      append([]string(nil), distance.ReferenceNames...),
			MinkowskiP:   distance.DefaultMinkowskiP,
			Normalizer:   "optimized",
			RangeLow:     0,
			RangeHigh:    1,
			Precision:    5,
			RepairPolicy: "fill",
		},
		Server: Server{
			Addr:                defaultServerAddr,
			ReadTimeoutSeconds:  defaultReadTimeoutSeconds,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
			MaxBodyBytes:        defaultMaxBodyBytes,
			Concurrency:         defaultConcurrency,
			WarmupIterations:    defaultWarmupIterations,
			DefaultAccept:       defaultAccept,
		},
		Classifier: Classifier{
			Kind:           ClassifierNone,
			TimeoutSeconds: defaultClassifierTimeout,
		},
		Capture: Capture{
			Path:               defaultCapturePath,
			SamplingPercentage: defaultSamplingPercentage,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Metrics: Metrics{
			Enabled:     true,
			Namespace:   defaultMetricsNamespace,
			ServiceName: defaultMetricsServiceName,
		},
	}
}
