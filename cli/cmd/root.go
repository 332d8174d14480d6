package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/michalshavit1/salto/config"
)

func Execute() error {
	return NewRootCommand().Execute()
}

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "salto",
		Short: "Map SaaS configuration between service APIs and declarative elements",
		Long: `Salto fetches configuration records from a SaaS service, normalizes them into
declarative elements with cross-record references, and deploys element changes
back through the service's write endpoints.

The mapping rules live in a per-service schema file; connection settings come
from the configuration file or SALTO_* environment variables.`,
		Example: `  # Fetch every listable kind and write elements under ./workspace
  salto fetch --out workspace

  # Fetch selected kinds only
  salto fetch automation trigger

  # Preview the wire requests of a change plan, then apply it
  salto deploy --plan plan.yaml --dry-run
  salto deploy --plan plan.yaml

  # Validate the schema tables
  salto schema validate`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", config.DefaultConfigPath, "Path to the configuration file")
	cmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity")

	cmd.AddCommand(newFetchCommand())
	cmd.AddCommand(newDeployCommand())
	cmd.AddCommand(newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}
