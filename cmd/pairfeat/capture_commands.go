package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/baditaflorin/go_pair_features/internal/adapters/capture"
	"github.com/baditaflorin/go_pair_features/internal/npy"
	"github.com/baditaflorin/go_pair_features/internal/server"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Inspect captured inferences",
	}

	captureCmd.AddCommand(newCaptureListCommand(ctx))
	captureCmd.AddCommand(newCaptureShowCommand(ctx))
	captureCmd.AddCommand(newCaptureDecodeCommand())

	return captureCmd
}

func openCaptureStore(ctx *commandContext) (*capture.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return capture.Open(cfg.CaptureConfig())
}

func newCaptureListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent captures",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCaptureStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No captures")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				label := "-"
				if e.Decision != nil {
					label = strconv.FormatFloat(e.Decision.Label, 'g', -1, 64)
				}
				rows = append(rows, []string{
					e.InferenceID,
					e.CapturedAt.Local().Format(time.DateTime),
					truncate(e.Input.S1, 32),
					truncate(e.Input.S2, 32),
					label,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Inference ID", "Captured", "S1", "S2", "Label"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintf(out, "%d of %d captures\n", len(entries), total)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of captures (0 lists all)")
	return cmd
}

func newCaptureShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <inference-id>",
		Short: "Show one capture with its decoded features",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCaptureStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entry, ok, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("capture %s not found", args[0])
			}
			rec, err := entry.Record()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "inference_id: %s\n", rec.InferenceID)
			fmt.Fprintf(out, "captured_at:  %s\n", rec.CapturedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "s1:           %s\n", rec.Input.S1)
			fmt.Fprintf(out, "s2:           %s\n", rec.Input.S2)
			if rec.Decision != nil {
				fmt.Fprintf(out, "label:        %g\n", rec.Decision.Label)
				fmt.Fprintf(out, "score:        %g\n", rec.Decision.Score)
			}
			fmt.Fprintf(out, "features:     %s\n", server.FormatCSV(rec.Features))
			return nil
		},
	}
}

func newCaptureDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "decode <base64-npy>",
		Short:       "Decode a base64 NPY feature array",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			arr, err := npy.DecodeBase64(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), server.FormatCSV(arr.Data))
			return err
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
