package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehrgate/ehrgate/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI document for the HTTP gateway",
		Example: `  ehrgate openapi > openapi.json
  ehrgate openapi --base-url https://ehr.example.com --output openapi.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(openapi.Generate(versionString(), baseURL), "", "  ")
			if err != nil {
				return fmt.Errorf("encode openapi: %w", err)
			}
			data = append(data, '\n')

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8000", "Server URL advertised in the document")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}
