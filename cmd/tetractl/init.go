package main

import (
	"fmt"

	"github.com/oriys/tetra/internal/persistence"
	"github.com/oriys/tetra/internal/spec"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example resource manifest to get a project started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := []byte(spec.ExampleYAML())
			if err := persistence.AtomicWriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write manifest template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "file", "tetra.yaml", "path to write the manifest template")
	return cmd
}
