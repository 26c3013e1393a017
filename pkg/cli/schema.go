package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Export the JSON Schema of the request protocol",
	}
	cmd.AddCommand(
		schemaExportCmd("request", "Export the request JSON Schema", schema.GenerateRequestJSONSchema),
		schemaExportCmd("response", "Export the response JSON Schema", schema.GenerateResponseJSONSchema),
	)
	return cmd
}

func schemaExportCmd(use, short string, generate func() ([]byte, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := generate()
			if err != nil {
				return fmt.Errorf("generate schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
