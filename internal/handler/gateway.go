// Package handler implements the gateway's HTTP routes: discovery and
// health endpoints, the /call and /authenticate REST bridge, and the
// server-push and socket streams.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ehrgate/ehrgate/internal/dispatch"
	"github.com/ehrgate/ehrgate/internal/mcp"
	"github.com/ehrgate/ehrgate/internal/service"
	"github.com/ehrgate/ehrgate/internal/telemetry"
)

const (
	defaultHeartbeat   = 30 * time.Second
	defaultSocketRate  = 10
	defaultSocketBurst = 20
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure a Gateway.
type Options struct {
	Dispatcher *dispatch.Dispatcher
	MCP        *mcp.MCPServer
	Pinger     Pinger
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger
	Version    string

	// Heartbeat is the interval between ping events on /sse.
	Heartbeat time.Duration

	// SocketRate and SocketBurst size the per-connection token bucket on
	// the socket transport.
	SocketRate  rate.Limit
	SocketBurst int
}

// Gateway serves the HTTP routes.
type Gateway struct {
	dispatcher *dispatch.Dispatcher
	mcp        *mcp.MCPServer
	pinger     Pinger
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	version    string
	heartbeat  time.Duration
	rate       rate.Limit
	burst      int
}

// NewGateway creates a Gateway. Zero durations and rates take defaults.
func NewGateway(opts Options) *Gateway {
	g := &Gateway{
		dispatcher: opts.Dispatcher,
		mcp:        opts.MCP,
		pinger:     opts.Pinger,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		version:    opts.Version,
		heartbeat:  opts.Heartbeat,
		rate:       opts.SocketRate,
		burst:      opts.SocketBurst,
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.heartbeat <= 0 {
		g.heartbeat = defaultHeartbeat
	}
	if g.rate <= 0 {
		g.rate = defaultSocketRate
	}
	if g.burst <= 0 {
		g.burst = defaultSocketBurst
	}
	return g
}

// ---------------------------------------------------------------------------
// Discovery and health
// ---------------------------------------------------------------------------

type toolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func toolCatalog() []toolInfo {
	defs := dispatch.Definitions()
	out := make([]toolInfo, len(defs))
	for i, d := range defs {
		out[i] = toolInfo{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema()}
	}
	return out
}

type serverInfo struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Protocol     string            `json:"protocol"`
	Capabilities map[string]bool   `json:"capabilities"`
	Transports   []string          `json:"transports"`
	Endpoints    map[string]string `json:"endpoints"`
	Tools        []toolInfo        `json:"tools"`
}

// ServerInfo describes the gateway.
// GET /
func (g *Gateway) ServerInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, serverInfo{
		Name:     "ehrgate",
		Version:  g.version,
		Protocol: "mcp",
		Capabilities: map[string]bool{
			"tools":     true,
			"resources": true,
			"prompts":   false,
		},
		Transports: []string{"stdio", "streamable-http", "sse", "websocket"},
		Endpoints: map[string]string{
			"tools":        "/tools",
			"call":         "/call",
			"authenticate": "/authenticate",
			"sse":          "/sse",
			"mcp":          "/mcp",
			"websocket":    "/ws",
			"openapi":      "/openapi.json",
			"metrics":      "/metrics",
		},
		Tools: toolCatalog(),
	})
}

// Health reports that the gateway is up.
// GET /health
func (g *Gateway) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "transport": "sse"})
}

// Healthz is a liveness probe.
// GET /healthz
func (g *Gateway) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz is a readiness probe; it fails with 503 when the database cannot
// be reached.
// GET /readyz
func (g *Gateway) Readyz(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	check := "ok"
	if g.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := g.pinger.Ping(ctx); err != nil {
			g.logger.Warn("readiness check failed", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
			check = "error: " + err.Error()
		}
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": map[string]string{"database": check},
	})
}

// Tools lists every operation with its input schema.
// GET /tools
func (g *Gateway) Tools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": toolCatalog()})
}

// RPCOr returns a handler that forwards JSON-RPC 2.0 bodies to the MCP
// server and hands anything else to fallback. Some clients post protocol
// messages to / or /tools instead of /mcp.
func (g *Gateway) RPCOr(fallback http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		var probe struct {
			JSONRPC string `json:"jsonrpc"`
		}
		if json.Unmarshal(body, &probe) != nil || probe.JSONRPC != "2.0" {
			fallback(w, r)
			return
		}
		reply := g.mcp.HandleMessage(r.Context(), json.RawMessage(body))
		if reply == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

// ---------------------------------------------------------------------------
// REST bridge
// ---------------------------------------------------------------------------

type callRequest struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
}

type callResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result"`
}

// Call invokes one operation. The result is wrapped the way MCP clients
// expect a tool result; failures also carry an HTTP error status.
// POST /call
func (g *Gateway) Call(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Tool == "" {
		writeError(w, http.StatusBadRequest, "Missing 'tool' parameter")
		return
	}

	res, err := g.dispatcher.DispatchName(r.Context(), req.Tool, dispatch.Args(req.Arguments))
	out, merr := mcp.Result(req.Tool, res, err)
	if merr != nil {
		g.logger.Error("failed to render result", "tool", req.Tool, "error", merr)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	writeJSON(w, status, callResponse{JSONRPC: "2.0", Result: out})
}

type authenticateRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AppID        string `json:"app_id"`
}

// Authenticate exchanges client credentials for an access token.
// POST /authenticate
func (g *Gateway) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.ClientID == "" || req.ClientSecret == "" || req.AppID == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameters: client_id, client_secret, app_id")
		return
	}

	res, err := g.dispatcher.Dispatch(r.Context(), dispatch.OpAuthenticate, dispatch.Args{
		"client_id":     req.ClientID,
		"client_secret": req.ClientSecret,
		"app_id":        req.AppID,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, dispatch.Message(err))
			return
		}
		writeError(w, statusFor(err), dispatch.Message(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---------------------------------------------------------------------------
// OpenAPI
// ---------------------------------------------------------------------------

// DocumentFunc builds the OpenAPI document for the given base URL.
type DocumentFunc func(baseURL string) interface{}

// OpenAPI serves the document produced by build.
// GET /openapi.json
func OpenAPI(build DocumentFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		doc := build(scheme + "://" + r.Host)
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to render OpenAPI document")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}
