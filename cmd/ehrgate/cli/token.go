package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newTokenCmd() *cobra.Command {
	var (
		clientID string
		appID    string
		secret   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Request an access token for a client",
		Long: `Authenticate a client and print the issued access token. When --secret is
omitted the secret is read from the terminal without echo, or from stdin when
stdin is not a terminal.`,
		Example: `  ehrgate token --client-id ehr_... --app-id copilot
  echo "$SECRET" | ehrgate token --client-id ehr_... --app-id copilot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				s, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				secret = s
			}
			return runToken(cmd, clientID, secret, appID)
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "Client id (required)")
	cmd.Flags().StringVar(&appID, "app-id", "", "Application id (required)")
	cmd.Flags().StringVar(&secret, "secret", "", "Client secret (prompted when omitted)")
	cmd.MarkFlagRequired("client-id")
	cmd.MarkFlagRequired("app-id")

	cmd.AddCommand(newTokenVerifyCmd())

	return cmd
}

// readSecret prompts on a terminal, otherwise reads the first line of in.
func readSecret(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Client secret: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return "", errors.New("no client secret given")
	}
	return secret, nil
}

func runToken(cmd *cobra.Command, clientID, secret, appID string) error {
	logger := newLogger()
	auth, st, err := openAuth(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	tok, err := auth.Authenticate(context.Background(), clientID, secret, appID)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(tok)
}

// ---------- token verify ----------

func newTokenVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify an access token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			auth, st, err := openAuth(logger)
			if err != nil {
				return err
			}
			defer st.Close()

			v := auth.ValidateToken(context.Background(), strings.TrimSpace(args[0]))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(v); err != nil {
				return err
			}
			if !v.Valid {
				return fmt.Errorf("invalid token: %s", v.Error)
			}
			return nil
		},
	}
}
