package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ehrgate/ehrgate/internal/dispatch"
	"github.com/ehrgate/ehrgate/internal/mcp"
	"github.com/ehrgate/ehrgate/internal/records"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start a standalone MCP server",
		Long: `Start a Model Context Protocol server that exposes the record operations as
tools. Supports stdio (default) and streamable HTTP transports.

In stdio mode the server speaks JSON-RPC over stdin/stdout, suitable for desktop
MCP clients. Logs go to stderr.`,
		Example: `  ehrgate mcp                               # stdio mode
  ehrgate mcp --transport http --port 8001  # streamable HTTP at /mcp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("transport") {
				transport = viper.GetString("mcp.transport")
			}
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 8001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	logger := newLogger()

	auth, st, err := openAuth(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	d := dispatch.New(auth, records.NewService(st, logger), dispatch.Options{
		EnforceScopes: auth.Settings().EnforceScopes,
		Logger:        logger,
	})
	mcpSrv := mcp.NewMCPServer(d, appVersion, logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
