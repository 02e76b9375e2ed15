package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/baditaflorin/go_pair_features/internal/replay"
)

func newReplayCommand(ctx *commandContext) *cobra.Command {
	defaults := replay.DefaultConfig()

	var (
		dataPath    string
		outPath     string
		url         string
		accept      string
		n           int
		seed        uint64
		concurrency int
		timeout     time.Duration
		noProgress  bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Send a sentence pair dataset to a running endpoint",
		Long: "Reads a tab-separated dataset (quality, id1, id2, text1, text2), " +
			"sends a random sample to the endpoint and writes every answer to a JSON file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataPath == "" {
				return errors.New("--data is required")
			}
			log, err := ctx.newLogger(false)
			if err != nil {
				return err
			}
			defer log.Close()

			rows, skipped, err := replay.ReadTSVFile(dataPath)
			if err != nil {
				return err
			}
			if skipped > 0 {
				log.Warn("Skipped malformed dataset lines", "count", skipped)
			}
			rows = replay.Sample(rows, n, seed)

			runner, err := replay.NewRunner(replay.Config{
				URL:         url,
				Concurrency: concurrency,
				Timeout:     timeout,
				Accept:      accept,
			}, log)
			if err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			var run func() (replay.Output, replay.Summary, error)
			if noProgress || !isTerminal(errOut) {
				run = func() (replay.Output, replay.Summary, error) {
					return runner.Run(cmd.Context(), rows, nil)
				}
			} else {
				pw, tracker := replay.NewProgress(errOut, len(rows), "replaying")
				go pw.Render()
				run = func() (replay.Output, replay.Summary, error) {
					defer pw.Stop()
					return runner.Run(cmd.Context(), rows, tracker)
				}
			}

			result, summary, runErr := run()

			if dir := filepath.Dir(outPath); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			if err := replay.WriteJSON(f, result); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d pairs (%d failed) in %s, results in %s\n",
				summary.Sent, summary.Failed, summary.Duration.Round(time.Millisecond), outPath)
			return runErr
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "Tab-separated dataset file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "replay.json", "Output JSON file")
	cmd.Flags().StringVar(&url, "url", defaults.URL, "Invocation endpoint")
	cmd.Flags().StringVar(&accept, "accept", defaults.Accept, "Requested response type")
	cmd.Flags().IntVarP(&n, "n", "n", 100, "Number of pairs to send (0 sends all)")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Sampling seed")
	cmd.Flags().IntVar(&concurrency, "concurrency", defaults.Concurrency, "Concurrent requests")
	cmd.Flags().DurationVar(&timeout, "timeout", defaults.Timeout, "Per-request timeout")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}
