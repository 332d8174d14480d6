package cmd

import (
	"github.com/spf13/cobra"

	"github.com/michalshavit1/salto/config"
	"github.com/michalshavit1/salto/schema"
)

func newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and validate the resource schema tables",
	}
	cmd.AddCommand(newSchemaValidateCommand())
	cmd.AddCommand(newSchemaListCommand())
	return cmd
}

func loadRegistry(cmd *cobra.Command) (*schema.Registry, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	schemaPath, err := config.ExpandHome(cfg.SchemaFile)
	if err != nil {
		return nil, err
	}
	return schema.LoadFile(schemaPath)
}

func newSchemaValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the schema file referenced by the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(cmd)
			if err != nil {
				return err
			}
			cmd.Printf("schema is valid: %d resource kinds\n", len(registry.Kinds()))
			return nil
		},
	}
}

func newSchemaListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the resource kinds the schema maps",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(cmd)
			if err != nil {
				return err
			}
			for _, kind := range registry.Kinds() {
				marker := ""
				if registry.IsConfigurationObject(kind) {
					marker = " (configuration object)"
				}
				if _, ok := registry.LookupOrder(schema.OrderKind(kind)); ok {
					marker += " (ordered)"
				}
				cmd.Printf("%s%s\n", kind, marker)
			}
			return nil
		},
	}
}
