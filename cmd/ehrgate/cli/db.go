package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ehrgate/ehrgate/internal/connector"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "db",
		Aliases: []string{"database"},
		Short:   "Manage the record database",
		Long:    "Apply schema migrations to, or check connectivity of, the configured database.",
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBPingCmd())

	return cmd
}

// ---------- db migrate ----------

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema",
		Long:  "Create any missing tables and indexes. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(newLogger())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer st.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s).\n", st.Driver())
			return nil
		},
	}
}

// ---------- db ping ----------

func newDBPingCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			driver := viper.GetString("database.driver")
			conn, err := newRegistry().Open(connector.ConnectionConfig{
				Driver: driver,
				DSN:    viper.GetString("database.dsn"),
			})
			if err != nil {
				return err
			}
			defer conn.Disconnect()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			start := time.Now()
			if err := conn.Ping(ctx); err != nil {
				return fmt.Errorf("ping %s: %w", driver, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s reachable at %s (%s)\n",
				driver, connector.RedactDSN(driver, viper.GetString("database.dsn")), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Ping timeout")

	return cmd
}
