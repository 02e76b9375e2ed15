package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/baditaflorin/go_pair_features/internal/adapters/payload"
	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/npy"
	"github.com/baditaflorin/go_pair_features/internal/server"
)

// Output formats of the features command.
const (
	formatAuto  = "auto"
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
	formatNPY   = "npy"
)

// pairInput reads the pair from --s1/--s2 or, with --input, from a JSON
// payload file ("-" is stdin).
type pairInput struct {
	s1, s2 string
	input  string
}

func (p *pairInput) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.s1, "s1", "", "First text")
	cmd.Flags().StringVar(&p.s2, "s2", "", "Second text")
	cmd.Flags().StringVarP(&p.input, "input", "i", "", `JSON payload file with "s1" and "s2" ("-" for stdin)`)
}

func (p *pairInput) pair(cmd *cobra.Command) (domain.RawPair, error) {
	if p.input == "" {
		if !cmd.Flags().Changed("s1") || !cmd.Flags().Changed("s2") {
			return domain.RawPair{}, errors.New("provide --s1 and --s2, or --input")
		}
		return domain.RawPair{S1: p.s1, S2: p.s2}, nil
	}

	var r io.Reader = cmd.InOrStdin()
	if p.input != "-" {
		f, err := os.Open(p.input)
		if err != nil {
			return domain.RawPair{}, err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.RawPair{}, fmt.Errorf("read input: %w", err)
	}
	return payload.Decode(data)
}

func newFeaturesCommand(ctx *commandContext) *cobra.Command {
	var in pairInput
	var format string

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Print the feature vector of a text pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := in.pair(cmd)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log, err := ctx.newLogger(true)
			if err != nil {
				return err
			}
			defer log.Close()

			calc, err := newCalculator(cmd.Context(), cfg, log, false)
			if err != nil {
				return err
			}
			res, err := calc.Compute(cmd.Context(), pair)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == formatAuto {
				format = formatCSV
				if isTerminal(out) {
					format = formatTable
				}
			}
			return writeFeatures(out, format, calc.MetricNames(), res)
		},
	}

	in.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", formatAuto, "Output format: auto, table, csv, json or npy")
	return cmd
}

func writeFeatures(w io.Writer, format string, names []string, res domain.Result) error {
	switch format {
	case formatTable:
		rows := make([][]string, len(names))
		for i, name := range names {
			rows[i] = []string{
				strconv.Itoa(i),
				name,
				formatFloat(res.Raw[i]),
				formatFloat(res.Features[i]),
			}
		}
		fmt.Fprintln(w, renderTable(
			[]string{"#", "Metric", "Raw", "Feature"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
		))
		fmt.Fprintf(w, "vocabulary: %d words, repaired: %d\n", len(res.Vocabulary), res.Repaired)
		return nil
	case formatCSV:
		_, err := fmt.Fprintln(w, server.FormatCSV(res.Features))
		return err
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(server.NewFeaturesResponse("", names, res))
	case formatNPY:
		return npy.Write(w, npy.Row(res.Features))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func formatFloat(v float64) string {
	return server.FormatCSV(domain.MetricVector{v})
}
