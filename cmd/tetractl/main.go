// Command tetractl is the thin collaborator CLI over the control plane:
// deploy a resource manifest, inspect the registry, invoke a resource
// ad-hoc, and run the long-lived daemon that keeps the observability stack
// warm. It owns no business logic of its own; every subcommand is a few
// lines of wiring over internal/resourcemanager, internal/deploy,
// internal/invoke, and internal/manifest.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfigFile string
	flagStateDir   string
	flagEnvID      string
	flagOutput     string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tetractl",
		Short: "Control plane for on-demand GPU/CPU serverless resources",
		Long: `tetractl deploys and invokes declarative resource manifests against the
on-demand fleet: the Resource Manager reconciles desired state, the
Deployment Orchestrator fans a manifest out concurrently, and the
Reliability Runtime carries every invocation through a load balancer,
circuit breaker, and retry policy.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to a JSON config file (defaults applied, then TETRA_* env overrides)")
	cmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "override the .tetra state directory")
	cmd.PersistentFlags().StringVar(&flagEnvID, "env", "default", "environment id scoping remote manifest persistence")
	cmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "output format: table, wide, json, yaml")

	cmd.AddCommand(applyCmd())
	cmd.AddCommand(listCmd())
	cmd.AddCommand(getCmd())
	cmd.AddCommand(undeployCmd())
	cmd.AddCommand(invokeCmd())
	cmd.AddCommand(initCmd())
	cmd.AddCommand(daemonCmd())

	return cmd
}
