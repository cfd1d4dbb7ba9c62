package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ehrgate/ehrgate/internal/model"
	"github.com/ehrgate/ehrgate/internal/service"
	"github.com/ehrgate/ehrgate/internal/store"
)

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "client",
		Aliases: []string{"clients"},
		Short:   "Manage client credentials",
		Long:    "Register, list, deactivate, and reactivate the client applications allowed to request access tokens.",
	}

	cmd.AddCommand(newClientRegisterCmd())
	cmd.AddCommand(newClientListCmd())
	cmd.AddCommand(newClientSetActiveCmd("deactivate", false))
	cmd.AddCommand(newClientSetActiveCmd("activate", true))

	return cmd
}

// ---------- client register ----------

func newClientRegisterCmd() *cobra.Command {
	var (
		reg        service.Registration
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a client application",
		Long:  "Issue a client id and secret for an application. The secret is shown once and cannot be retrieved again.",
		Example: `  ehrgate client register --app-id copilot --app-name "Copilot Agent" --role doctor \
      --scope read:patients --scope read:medications`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClientRegister(cmd, reg, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&reg.AppID, "app-id", "", "Application id (required)")
	cmd.Flags().StringVar(&reg.AppName, "app-name", "", "Application display name (required)")
	cmd.Flags().StringVar(&reg.Role, "role", "", "Role: "+model.RoleList()+" (required)")
	cmd.Flags().StringSliceVar(&reg.Scopes, "scope", nil, "Granted scope (repeatable)")
	cmd.Flags().StringVar(&reg.Description, "description", "", "Free-form description")
	cmd.Flags().StringVar(&reg.ContactEmail, "contact-email", "", "Contact address for the application owner")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("app-id")
	cmd.MarkFlagRequired("app-name")
	cmd.MarkFlagRequired("role")

	return cmd
}

func runClientRegister(cmd *cobra.Command, reg service.Registration, jsonOutput bool) error {
	logger := newLogger()
	auth, st, err := openAuth(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	cred, err := auth.RegisterCredential(context.Background(), reg)
	if err != nil {
		return fmt.Errorf("register client: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cred)
	}

	fmt.Fprintln(out, "Client registered.")
	fmt.Fprintf(out, "  App:           %s (%s)\n", cred.AppName, cred.AppID)
	fmt.Fprintf(out, "  Role:          %s\n", cred.Role)
	fmt.Fprintf(out, "  Scopes:        %s\n", strings.Join(cred.Scopes, " "))
	fmt.Fprintf(out, "  Client ID:     %s\n", cred.ClientID)
	fmt.Fprintf(out, "  Client secret: %s\n", cred.ClientSecret)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Store the secret now. It cannot be shown again.")
	return nil
}

// ---------- client list ----------

func newClientListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClientList(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runClientList(cmd *cobra.Command, jsonOutput bool) error {
	st, err := openStore(newLogger())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	creds, err := st.ListCredentials(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(creds)
	}

	if len(creds) == 0 {
		fmt.Fprintln(out, "No clients registered. Create one with 'ehrgate client register'.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT ID\tAPP ID\tROLE\tACTIVE\tLAST USED\tSCOPES")
	for _, c := range creds {
		lastUsed := "never"
		if c.LastUsed != nil {
			lastUsed = c.LastUsed.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
			c.ClientID, c.AppID, c.Role, c.IsActive, lastUsed, strings.Join(c.Scopes, " "))
	}
	return tw.Flush()
}

// ---------- client activate / deactivate ----------

func newClientSetActiveCmd(verb string, active bool) *cobra.Command {
	short := "Reactivate a client"
	if !active {
		short = "Deactivate a client"
	}

	return &cobra.Command{
		Use:   verb + " <client-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(newLogger())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			if err := st.SetCredentialActive(context.Background(), args[0], active); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("client %q not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Client %s %sd.\n", args[0], verb)
			if !active {
				fmt.Fprintln(cmd.ErrOrStderr(), "Note: tokens already issued stay valid until they expire unless auth.check_active is enabled.")
			}
			return nil
		},
	}
}
