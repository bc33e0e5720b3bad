package main

import (
	"fmt"

	"github.com/oriys/tetra/internal/output"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every resource currently in the deployment registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvironment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			deployed := env.manager.List()
			rows := make([]output.ResourceRow, len(deployed))
			for i, d := range deployed {
				rows[i] = output.ResourceRow{
					Name:       d.Name,
					Kind:       string(d.Kind),
					ResourceID: d.ResourceID,
					EndpointID: d.EndpointID,
					Replicas:   len(d.ReplicaURLs),
					Deployed:   d.DeployedAt.Format("2006-01-02 15:04:05"),
				}
			}
			return env.printer.PrintResources(rows)
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource-id>",
		Short: "Show one deployed resource by resource_id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvironment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			d, ok := env.manager.Get(args[0])
			if !ok {
				return fmt.Errorf("resource %s is not deployed", args[0])
			}
			return env.printer.Print(d)
		},
	}
}

func undeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undeploy <resource-id>",
		Short: "Tear down a deployed resource and remove it from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := buildEnvironment(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.manager.Undeploy(ctx, args[0]); err != nil {
				return fmt.Errorf("undeploy %s: %w", args[0], err)
			}
			env.printer.Success("undeployed %s", args[0])
			return nil
		},
	}
}
