package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ehrgate/ehrgate/internal/dispatch"
	"github.com/ehrgate/ehrgate/internal/handler"
	"github.com/ehrgate/ehrgate/internal/mcp"
	"github.com/ehrgate/ehrgate/internal/openapi"
	"github.com/ehrgate/ehrgate/internal/records"
	"github.com/ehrgate/ehrgate/internal/server"
	"github.com/ehrgate/ehrgate/internal/telemetry"
)

const banner = `
       _                      _
  ___ | |__  _ __ __ _  __ _ | |_  ___
 / _ \| '_ \| '__/ _' |/ _' || __|/ _ \
|  __/| | | | | | (_| | (_| || |_|  __/
 \___||_| |_|_|  \__, |\__,_| \__|\___|
                 |___/
`

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway and socket listener",
		Long: `Start the HTTP gateway (MCP at /mcp, JSON routes, server-sent events at /sse)
and the standalone socket listener. Shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.Flags().IntP("port", "p", 8000, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().Int("socket-port", 7777, "socket listener port (0 disables)")
	cmd.Flags().Int("rate-limit", 0, "requests per minute per client IP (0 disables)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("server.socket_port", cmd.Flags().Lookup("socket-port"))
	viper.BindPFlag("server.rate_limit", cmd.Flags().Lookup("rate-limit"))

	return cmd
}

func runServe() error {
	fmt.Print(banner)
	fmt.Println()

	logger := newLogger()

	auth, st, err := openAuth(logger)
	if err != nil {
		return err
	}
	defer st.Close()
	settings := auth.Settings()

	metrics := telemetry.New(appVersion, appCommit, logger)
	metrics.Start(credentialStats(st))
	defer metrics.Shutdown()

	d := dispatch.New(auth, records.NewService(st, logger), dispatch.Options{
		EnforceScopes: settings.EnforceScopes,
		Metrics:       metrics,
		Logger:        logger,
	})
	mcpSrv := mcp.NewMCPServer(d, appVersion, logger)

	gw := handler.NewGateway(handler.Options{
		Dispatcher: d,
		MCP:        mcpSrv,
		Pinger:     st,
		Metrics:    metrics,
		Logger:     logger,
		Version:    appVersion,
		Heartbeat:  viper.GetDuration("server.heartbeat"),
	})

	cfg := server.DefaultConfig()
	cfg.Host = viper.GetString("server.host")
	cfg.Port = viper.GetInt("server.port")
	cfg.SocketPort = viper.GetInt("server.socket_port")
	cfg.RateLimit = viper.GetInt("server.rate_limit")
	if origins := viper.GetStringSlice("server.cors.origins"); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}
	if timeout := viper.GetDuration("server.shutdown_timeout"); timeout > 0 {
		cfg.ShutdownTimeout = timeout
	}

	doc := func(baseURL string) interface{} { return openapi.Generate(appVersion, baseURL) }
	srv := server.New(cfg, gw, mcpSrv.HTTPHandler(), doc, metrics, logger)

	fmt.Printf("→ ehrgate %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Host, cfg.Port)
	fmt.Printf("→ MCP:        http://%s:%d/mcp\n", cfg.Host, cfg.Port)
	fmt.Printf("→ Events:     http://%s:%d/sse\n", cfg.Host, cfg.Port)
	if cfg.SocketPort > 0 {
		fmt.Printf("→ Socket:     ws://%s:%d/\n", cfg.Host, cfg.SocketPort)
	}
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", cfg.Host, cfg.Port)
	fmt.Printf("→ Storage:    %s\n", st.Driver())
	if settings.UsesDevKey() {
		fmt.Println("→ WARNING: tokens are signed with the development key")
	}
	fmt.Println()

	return srv.ListenAndServe()
}
