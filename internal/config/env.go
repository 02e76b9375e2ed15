package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "PAIRFEAT_"

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	float := func(key string, dst *float64) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
		*dst = f
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	if v, ok := lookup(EnvPrefix + "METRICS_LIST"); ok && strings.TrimSpace(v) != "" {
		c.Features.Metrics = strings.Split(v, ",")
	}
	str("NORMALIZER", &c.Features.Normalizer)
	str("REPAIR_POLICY", &c.Features.RepairPolicy)
	str("SERVER_ADDR", &c.Server.Addr)
	str("DEFAULT_ACCEPT", &c.Server.DefaultAccept)
	str("CLASSIFIER_KIND", &c.Classifier.Kind)
	str("CLASSIFIER_ARTIFACT", &c.Classifier.ArtifactPath)
	str("CLASSIFIER_URL", &c.Classifier.RemoteURL)
	str("CAPTURE_PATH", &c.Capture.Path)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.File)

	for _, apply := range []func() error{
		func() error { return float("MINKOWSKI_P", &c.Features.MinkowskiP) },
		func() error { return boolean("BINARIZE_SET_METRICS", &c.Features.BinarizeSetMetrics) },
		func() error {
			if _, ok := lookup(EnvPrefix + "FILL_VALUE"); !ok {
				return nil
			}
			var fill float64
			if err := float("FILL_VALUE", &fill); err != nil {
				return err
			}
			c.Features.FillValue = &fill
			return nil
		},
		func() error { return integer("MAX_BODY_BYTES", &c.Server.MaxBodyBytes) },
		func() error { return boolean("CLASSIFIER_WATCH", &c.Classifier.Watch) },
		func() error { return boolean("CAPTURE_ENABLED", &c.Capture.Enabled) },
		func() error { return float("CAPTURE_SAMPLING", &c.Capture.SamplingPercentage) },
		func() error { return boolean("METRICS_ENABLED", &c.Metrics.Enabled) },
	} {
		if err := apply(); err != nil {
			return err
		}
	}
	return nil
}
