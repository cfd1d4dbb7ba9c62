package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehrgate/ehrgate/internal/seed"
)

func newSeedCmd() *cobra.Command {
	var (
		noClients  bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "seed [fixtures.yaml]",
		Short: "Load records from a fixtures file",
		Long: `Load providers, patients, and their records from a YAML fixtures file, or the
built-in demo data when no file is given. Existing patients and providers are
left untouched. Client credentials listed in the file are registered and their
secrets printed once.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				f   *seed.Fixtures
				err error
			)
			if len(args) == 1 {
				f, err = seed.ParseFile(args[0])
			} else {
				f, err = seed.Demo()
			}
			if err != nil {
				return err
			}
			if noClients {
				f.Clients = nil
			}
			return runSeed(cmd, f, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&noClients, "no-clients", false, "Skip client registration")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the summary as JSON")

	return cmd
}

func runSeed(cmd *cobra.Command, f *seed.Fixtures, jsonOutput bool) error {
	logger := newLogger()
	auth, st, err := openAuth(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	sum, err := seed.NewLoader(st, auth, logger).Load(context.Background(), f)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}

	fmt.Fprintf(out, "Loaded %d providers, %d patients, %d appointments, %d medications, %d allergies, %d vitals, %d labs (%d skipped).\n",
		sum.Providers, sum.Patients, sum.Appointments, sum.Medications, sum.Allergies, sum.VitalSigns, sum.LabResults, sum.Skipped)
	for _, c := range sum.Clients {
		fmt.Fprintf(out, "\n%s (%s, role %s)\n", c.AppName, c.AppID, c.Role)
		fmt.Fprintf(out, "  Client ID:     %s\n", c.ClientID)
		fmt.Fprintf(out, "  Client secret: %s\n", c.ClientSecret)
	}
	if len(sum.Clients) > 0 {
		fmt.Fprintln(out, "\nStore the secrets now. They cannot be shown again.")
	}
	return nil
}
