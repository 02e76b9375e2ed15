package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/baditaflorin/go_pair_features/internal/adapters/capture"
	"github.com/baditaflorin/go_pair_features/internal/adapters/logger"
	"github.com/baditaflorin/go_pair_features/internal/adapters/normalizer"
	"github.com/baditaflorin/go_pair_features/internal/adapters/telemetry"
	"github.com/baditaflorin/go_pair_features/internal/core/distance"
	"github.com/baditaflorin/go_pair_features/internal/core/pipeline"
	"github.com/baditaflorin/go_pair_features/internal/core/scaling"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if _, err := c.Pipeline(); err != nil {
		return fmt.Errorf("features: %w", err)
	}
	if _, err := c.NormalizerType(); err != nil {
		return fmt.Errorf("features: %w", err)
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if c.Capture.Enabled {
		if err := c.CaptureConfig().Validate(); err != nil {
			return err
		}
	}
	if _, err := c.LoggerOptions(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Addr == "" {
		return errors.New("server: addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server: max_body_bytes must be positive")
	}
	if c.Server.ReadTimeoutSeconds <= 0 || c.Server.WriteTimeoutSeconds <= 0 {
		return errors.New("server: timeouts must be positive")
	}
	if c.Server.WarmupIterations < 0 {
		return errors.New("server: warmup_iterations cannot be negative")
	}
	switch c.Server.DefaultAccept {
	case "text/csv", "application/json":
	default:
		return fmt.Errorf("server: unsupported default_accept %q", c.Server.DefaultAccept)
	}
	return nil
}

func (c *Config) validateClassifier() error {
	switch c.Classifier.Kind {
	case ClassifierNone:
	case ClassifierLinear:
		if c.Classifier.ArtifactPath == "" {
			return errors.New("classifier: artifact_path is required for linear")
		}
	case ClassifierRemote:
		if c.Classifier.RemoteURL == "" {
			return errors.New("classifier: remote_url is required for remote")
		}
	default:
		return fmt.Errorf("classifier: unknown kind %q", c.Classifier.Kind)
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		return errors.New("classifier: timeout_seconds must be positive")
	}
	return nil
}

// Pipeline converts the [features] section to a pipeline configuration.
func (c *Config) Pipeline() (pipeline.Config, error) {
	policy, err := scaling.ParsePolicy(c.Features.RepairPolicy)
	if err != nil {
		return pipeline.Config{}, err
	}
	pc := pipeline.Config{
		Distance: distance.Config{
			Metrics:            append([]string(nil), c.Features.Metrics...),
			MinkowskiP:         c.Features.MinkowskiP,
			BinarizeSetMetrics: c.Features.BinarizeSetMetrics,
		},
		Scaling: scaling.Config{
			Low:       c.Features.RangeLow,
			High:      c.Features.RangeHigh,
			Precision: c.Features.Precision,
			Policy:    policy,
			FillValue: c.Features.FillValue,
		},
	}
	if err := pc.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return pc, nil
}

// NormalizerType returns the configured normalizer implementation.
func (c *Config) NormalizerType() (normalizer.NormalizerType, error) {
	return normalizer.ParseNormalizerType(c.Features.Normalizer)
}

// LoggerOptions converts the [logging] section.
func (c *Config) LoggerOptions() (logger.Options, error) {
	level, err := logger.ParseLevel(c.Logging.Level)
	if err != nil {
		return logger.Options{}, err
	}
	var json bool
	switch c.Logging.Format {
	case "", "text", "console":
	case "json":
		json = true
	default:
		return logger.Options{}, fmt.Errorf("unknown format %q", c.Logging.Format)
	}
	return logger.Options{File: c.Logging.File, JSON: json, Level: level}, nil
}

// CaptureConfig converts the [capture] section.
func (c *Config) CaptureConfig() capture.Config {
	return capture.Config{Path: c.Capture.Path, SamplingPercentage: c.Capture.SamplingPercentage}
}

// TelemetryConfig converts the [metrics] section.
func (c *Config) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Namespace:               c.Metrics.Namespace,
		ServiceName:             c.Metrics.ServiceName,
		EnableDefaultCollectors: true,
	}
}

// ClassifierTimeout returns the remote call timeout.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}
