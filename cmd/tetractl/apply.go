package main

import (
	"fmt"

	"github.com/oriys/tetra/internal/deploy"
	"github.com/oriys/tetra/internal/output"
	"github.com/oriys/tetra/internal/spec"
	"github.com/spf13/cobra"
)

func applyCmd() *cobra.Command {
	var maxConcurrent int
	var quiet bool

	cmd := &cobra.Command{
		Use:   "apply <manifest.yaml>",
		Short: "Deploy every resource declared in a manifest file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestFile, err := spec.ParseFile(args[0])
			if err != nil {
				return fmt.Errorf("parse manifest: %w", err)
			}
			resources, err := manifestFile.ToResourceConfigs()
			if err != nil {
				return fmt.Errorf("validate manifest: %w", err)
			}

			ctx := cmd.Context()
			env, err := buildEnvironment(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			results := env.orch.DeployAll(ctx, resources, maxConcurrent, !quiet)
			rows := make([]output.DeploymentSummaryRow, len(results))
			for i, r := range results {
				row := output.DeploymentSummaryRow{
					Name:       r.Resource.Name,
					Status:     string(r.Status),
					DurationMs: r.Duration.Milliseconds(),
					EndpointID: r.EndpointID,
				}
				if r.Err != nil {
					row.Error = r.Err.Error()
				}
				rows[i] = row
			}

			if err := env.printer.PrintDeploymentSummary(rows); err != nil {
				return fmt.Errorf("print results: %w", err)
			}

			if _, _, failed := deploy.Summarize(results); failed > 0 {
				return fmt.Errorf("%d of %d resources failed to deploy", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", deploy.DefaultMaxConcurrent, "maximum concurrent deploys in flight")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress per-item progress logging")
	return cmd
}
