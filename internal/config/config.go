// Package config loads the service configuration from a TOML file, an
// optional .env file and PAIRFEAT_* environment variables, in that order of
// increasing precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Features configures the extraction pipeline.
type Features struct {
	Metrics            []string `toml:"metrics"`
	MinkowskiP         float64  `toml:"minkowski_p"`
	BinarizeSetMetrics bool     `toml:"binarize_set_metrics"`
	Normalizer         string   `toml:"normalizer"`
	RangeLow           float64  `toml:"range_low"`
	RangeHigh          float64  `toml:"range_high"`
	Precision          int      `toml:"precision"`
	RepairPolicy       string   `toml:"repair_policy"`
	// FillValue defaults to RangeLow when unset.
	FillValue *float64 `toml:"fill_value"`
}

// Server configures the inference HTTP server.
type Server struct {
	Addr                string `toml:"addr"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
	MaxBodyBytes        int    `toml:"max_body_bytes"`
	Concurrency         int    `toml:"concurrency"`
	WarmupIterations    int    `toml:"warmup_iterations"`
	// DefaultAccept is used for /invocations when the client sends no Accept.
	DefaultAccept string `toml:"default_accept"`
}

// Classifier selects the model behind /invocations.
type Classifier struct {
	// Kind is one of "none", "linear" or "remote".
	Kind           string `toml:"kind"`
	ArtifactPath   string `toml:"artifact_path"`
	Watch          bool   `toml:"watch"`
	RemoteURL      string `toml:"remote_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Capture configures inference capture.
type Capture struct {
	Enabled            bool    `toml:"enabled"`
	Path               string  `toml:"path"`
	SamplingPercentage float64 `toml:"sampling_percentage"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled     bool   `toml:"enabled"`
	Namespace   string `toml:"namespace"`
	ServiceName string `toml:"service_name"`
}

// Config is the full service configuration.
type Config struct {
	Features   Features   `toml:"features"`
	Server     Server     `toml:"server"`
	Classifier Classifier `toml:"classifier"`
	Capture    Capture    `toml:"capture"`
	Logging    Logging    `toml:"logging"`
	Metrics    Metrics    `toml:"metrics"`
}

// Load builds the configuration. An empty path skips the file. envFiles are
// loaded with godotenv before overrides are applied; missing files are
// ignored and variables already set in the process win.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := LoadEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Features.Normalizer = strings.ToLower(strings.TrimSpace(c.Features.Normalizer))
	c.Features.RepairPolicy = strings.ToLower(strings.TrimSpace(c.Features.RepairPolicy))
	c.Classifier.Kind = strings.ToLower(strings.TrimSpace(c.Classifier.Kind))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	for i, m := range c.Features.Metrics {
		c.Features.Metrics[i] = strings.ToLower(strings.TrimSpace(m))
	}
	if c.Classifier.Kind == "" {
		c.Classifier.Kind = ClassifierNone
	}
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Sample returns the annotated sample configuration.
func Sample() string {
	return sampleConfig
}
