package gopairfeatures

import (
	"github.com/baditaflorin/l"

	"github.com/baditaflorin/go_pair_features/internal/adapters/logger"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

// WithLogger sets a custom logger.
func WithLogger(lg l.Logger) Option {
	return func(cfg *extractorConfig) {
		cfg.logger = logger.FromExisting(lg)
	}
}

// WithoutLogging discards all log output.
func WithoutLogging() Option {
	return func(cfg *extractorConfig) {
		cfg.logger = logger.NewNopLogger()
	}
}

// newDefaultLogger creates the logger used when none is configured.
func newDefaultLogger() (ports.Logger, error) {
	return logger.NewStdLogger()
}
