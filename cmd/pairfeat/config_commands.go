package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baditaflorin/go_pair_features/internal/config"
	"github.com/baditaflorin/go_pair_features/internal/core/distance"
)

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	var reference bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "List the metrics that make up the feature vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := distance.ReferenceNames
			if !reference {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				names = cfg.Features.Metrics
			}

			rows := make([][]string, len(names))
			for i, name := range names {
				rows[i] = []string{strconv.Itoa(i), name}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Metric"},
				rows,
				[]columnAlignment{alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reference, "reference", false, "List the reference metric set instead of the configured one")
	return cmd
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = "pairfeat.toml"
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration valid")
			fmt.Fprintf(out, "  features:   %d metrics\n", len(cfg.Features.Metrics))
			fmt.Fprintf(out, "  normalizer: %s\n", cfg.Features.Normalizer)
			fmt.Fprintf(out, "  classifier: %s\n", cfg.Classifier.Kind)
			fmt.Fprintf(out, "  capture:    %s\n", yesNo(cfg.Capture.Enabled))
			fmt.Fprintf(out, "  prometheus: %s\n", yesNo(cfg.Metrics.Enabled))
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
