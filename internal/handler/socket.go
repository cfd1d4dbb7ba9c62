package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"
)

const (
	maxFrameSize = 1 << 20
	writeTimeout = 10 * time.Second
)

// JSON-RPC error codes used by the socket transport.
const (
	codeParseError  = -32700
	codeRateLimited = -32000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type rpcError struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   rpcErrorBody    `json:"error"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Socket upgrades the request and serves JSON-RPC over the connection until
// the client closes it or the server shuts down. Each text frame carries one message.
// GET /ws
func (g *Gateway) Socket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		g.logger.Debug("socket upgrade failed", "error", err)
		return
	}
	g.serveSocket(r.Context(), conn, r.RemoteAddr)
}

func (g *Gateway) serveSocket(ctx context.Context, conn *websocket.Conn, remote string) {
	defer conn.Close()

	id := ulid.Make().String()
	g.metrics.StreamOpened()
	defer g.metrics.StreamClosed()
	g.logger.Info("socket opened", "connection_id", id, "remote_addr", remote)
	defer g.logger.Info("socket closed", "connection_id", id)

	// Shutdown does not reach hijacked connections, so close them here.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			conn.Close()
		case <-done:
		}
	}()

	conn.SetReadLimit(maxFrameSize)
	limiter := rate.NewLimiter(g.rate, g.burst)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Warn("socket read failed", "connection_id", id, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}

		var reply interface{}
		switch {
		case !limiter.Allow():
			reply = newRPCError(requestID(data), codeRateLimited, "rate limited")
		case !json.Valid(data):
			reply = newRPCError(nil, codeParseError, "Parse error")
		default:
			if out := g.mcp.HandleMessage(ctx, json.RawMessage(data)); out != nil {
				reply = out
			}
		}
		if reply == nil {
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(reply); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				g.logger.Warn("socket write failed", "connection_id", id, "error", err)
			}
			return
		}
	}
}

func newRPCError(id json.RawMessage, code int, message string) rpcError {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return rpcError{JSONRPC: "2.0", ID: id, Error: rpcErrorBody{Code: code, Message: message}}
}

// requestID extracts the id of a JSON-RPC request, or nil.
func requestID(data []byte) json.RawMessage {
	var msg struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(data, &msg) != nil {
		return nil
	}
	return msg.ID
}
