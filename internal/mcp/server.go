// Package mcp exposes every gateway operation as an MCP tool. Tool calls are
// forwarded to the dispatcher, so token checks and metrics are shared with
// the HTTP and socket transports.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ehrgate/ehrgate/internal/dispatch"
)

const (
	serverName = "ehrgate"

	instructions = "Healthcare record gateway. Call authenticate with your client_id, " +
		"client_secret, and app_id to obtain an access_token, then pass it to every " +
		"record tool. Patients are addressed by MRN and providers by NPI."
)

// MCPServer wraps the mcp-go server with the gateway's tools and resources.
type MCPServer struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	server     *server.MCPServer
}

// NewMCPServer creates an MCPServer with one tool per operation.
func NewMCPServer(d *dispatch.Dispatcher, version string, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MCPServer{
		dispatcher: d,
		logger:     logger,
	}

	mcpServer := server.NewMCPServer(
		serverName,
		version,
		server.WithResourceCapabilities(false, false),
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
		server.WithRecovery(),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// HandleMessage processes one raw JSON-RPC message. It returns nil for
// notifications.
func (s *MCPServer) HandleMessage(ctx context.Context, raw json.RawMessage) mcp.JSONRPCMessage {
	return s.server.HandleMessage(ctx, raw)
}

// ServeStdio serves MCP over stdin/stdout until the input closes.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// HTTPHandler returns a stateless streamable HTTP handler. A bearer token in
// the Authorization header is made available to tools that are called
// without an access_token argument.
func (s *MCPServer) HTTPHandler() http.Handler {
	return s.streamable()
}

// ServeHTTP serves streamable HTTP on addr until the listener fails.
func (s *MCPServer) ServeHTTP(addr string) error {
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return s.streamable().Start(addr)
}

func (s *MCPServer) streamable() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.server,
		server.WithStateLess(true),
		server.WithHTTPContextFunc(bearerContext),
	)
}

func bearerContext(ctx context.Context, r *http.Request) context.Context {
	return dispatch.WithBearerToken(ctx, BearerFromHeader(r.Header.Get("Authorization")))
}

// BearerFromHeader extracts the token from an "Authorization: Bearer" value.
func BearerFromHeader(h string) string {
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(false),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
