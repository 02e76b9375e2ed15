package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/baditaflorin/go_pair_features/internal/adapters/classifier"
	"github.com/baditaflorin/go_pair_features/internal/adapters/logger"
	"github.com/baditaflorin/go_pair_features/internal/adapters/normalizer"
	"github.com/baditaflorin/go_pair_features/internal/config"
	"github.com/baditaflorin/go_pair_features/internal/core/pipeline"
	"github.com/baditaflorin/go_pair_features/internal/ports"
	"github.com/baditaflorin/go_pair_features/internal/warmup"
)

type commandContext struct {
	configFlag *string
	envFiles   *[]string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, envFiles *[]string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		envFiles:   envFiles,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		var envFiles []string
		if c.envFiles != nil {
			envFiles = *c.envFiles
		}
		cfg, err := config.Load(path, envFiles...)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// newLogger builds the configured logger. Commands whose stdout is their
// result pass quiet so that only warnings and errors are logged.
func (c *commandContext) newLogger(quiet bool) (ports.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.LoggerOptions()
	if err != nil {
		return nil, err
	}
	if quiet {
		if opts.File == "" {
			return logger.NewNopLogger(), nil
		}
		if opts.Level < logger.LevelWarn {
			opts.Level = logger.LevelWarn
		}
	}
	return logger.New(opts)
}

// newCalculator builds the feature pipeline from the [features] section and
// optionally warms it up.
func newCalculator(ctx context.Context, cfg *config.Config, log ports.Logger, warm bool) (*pipeline.Calculator, error) {
	pc, err := cfg.Pipeline()
	if err != nil {
		return nil, err
	}
	nt, err := cfg.NormalizerType()
	if err != nil {
		return nil, err
	}
	norm := normalizer.NewNormalizerFactory().CreateNormalizer(nt)

	calc, err := pipeline.NewCalculator(pc, log, norm)
	if err != nil {
		return nil, err
	}

	if warm && cfg.Server.WarmupIterations > 0 {
		wc := warmup.DefaultWarmupConfig()
		wc.Iterations = cfg.Server.WarmupIterations
		m := warmup.NewManager(log, wc)
		m.RegisterNormalizer(norm)
		m.RegisterExtractor(calc)
		m.WarmUp(ctx)
	}
	return calc, nil
}

// newClassifier builds the configured classifier. The reloadable model is
// returned separately so that the caller can watch its artifact. A nil
// classifier means none is configured.
func newClassifier(cfg *config.Config, names []string, log ports.Logger) (ports.Classifier, *classifier.Reloadable, error) {
	switch cfg.Classifier.Kind {
	case config.ClassifierLinear:
		r, err := classifier.NewReloadable(cfg.Classifier.ArtifactPath, classifier.LinearLoader(names), log)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	case config.ClassifierRemote:
		r, err := classifier.NewRemote(classifier.RemoteConfig{
			URL:     cfg.Classifier.RemoteURL,
			Timeout: cfg.ClassifierTimeout(),
		})
		if err != nil {
			return nil, nil, err
		}
		return r, nil, nil
	default:
		return nil, nil, nil
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
