package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/baditaflorin/go_pair_features/internal/server"
)

func newPredictCommand(ctx *commandContext) *cobra.Command {
	var in pairInput
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify a text pair with the configured model",
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
			clf, _, err := newClassifier(cfg, calc.MetricNames(), log)
			if err != nil {
				return err
			}
			if clf == nil {
				return errors.New("no classifier configured; set classifier.kind to linear or remote")
			}

			res, err := calc.Compute(cmd.Context(), pair)
			if err != nil {
				return err
			}
			decision, err := clf.Predict(cmd.Context(), res.Features)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(server.InvocationResponse{
					Label: decision.Label,
					Score: decision.Score,
				})
			}
			_, err = fmt.Fprintln(out, strconv.FormatFloat(decision.Label, 'g', -1, 64))
			return err
		},
	}

	in.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the decision as JSON")
	return cmd
}
