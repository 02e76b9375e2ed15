package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/baditaflorin/go_pair_features/internal/adapters/capture"
	"github.com/baditaflorin/go_pair_features/internal/adapters/telemetry"
	"github.com/baditaflorin/go_pair_features/internal/server"
)

const reloadDebounce = 250 * time.Millisecond

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var noWarmUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the inference HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			log, err := ctx.newLogger(false)
			if err != nil {
				return err
			}
			defer log.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("Starting pair feature server",
				"address", cfg.Server.Addr,
				"metrics", len(cfg.Features.Metrics),
				"normalizer", cfg.Features.Normalizer,
				"classifier", cfg.Classifier.Kind,
				"capture", cfg.Capture.Enabled,
			)

			calc, err := newCalculator(runCtx, cfg, log, !noWarmUp)
			if err != nil {
				return err
			}

			clf, reloadable, err := newClassifier(cfg, calc.MetricNames(), log)
			if err != nil {
				return err
			}

			deps := server.Deps{
				Extractor:  calc,
				Classifier: clf,
				Logger:     log,
			}

			if cfg.Capture.Enabled {
				store, err := capture.Open(cfg.CaptureConfig())
				if err != nil {
					return err
				}
				defer store.Close()
				deps.Capture = store
				log.Info("Capturing inferences", "path", store.Path(), "sampling", cfg.Capture.SamplingPercentage)
			}

			if cfg.Metrics.Enabled {
				deps.Telemetry = telemetry.New(cfg.TelemetryConfig())
			}

			srv, err := server.New(server.Config{
				Addr:           cfg.Server.Addr,
				ReadTimeout:    time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
				WriteTimeout:   time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
				MaxRequestSize: cfg.Server.MaxBodyBytes,
				Concurrency:    cfg.Server.Concurrency,
				DefaultAccept:  cfg.Server.DefaultAccept,
			}, deps)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(runCtx)
			if reloadable != nil && cfg.Classifier.Watch {
				g.Go(func() error {
					return reloadable.Watch(gctx, reloadDebounce)
				})
			}
			g.Go(func() error {
				return srv.ListenAndServe(gctx)
			})

			return ignoreCanceled(g.Wait())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.addr")
	cmd.Flags().BoolVar(&noWarmUp, "no-warm-up", false, "Skip the warm-up run on startup")
	return cmd
}

// ignoreCanceled drops the error a clean shutdown leaves behind, wrapped or not.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
