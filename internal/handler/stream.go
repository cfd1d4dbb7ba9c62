package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
)

type rpcNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Result  interface{} `json:"result,omitempty"`
}

// Events holds a server-push stream open. The client first receives an
// endpoint event naming where to post calls and the tool catalog, then a
// ping every heartbeat until it disconnects.
// GET /sse
func (g *Gateway) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		g.logger.Error("stream not supported by response writer", "error", err)
		return
	}

	id := ulid.Make().String()
	g.metrics.StreamOpened()
	defer g.metrics.StreamClosed()
	g.logger.Info("stream opened", "connection_id", id, "remote_addr", r.RemoteAddr)
	defer g.logger.Info("stream closed", "connection_id", id)

	s := &eventStream{w: w, rc: rc}
	s.send("endpoint", "/call")
	s.sendJSON("tools/list", rpcNotification{
		JSONRPC: "2.0",
		Method:  "tools/list",
		Result:  map[string]interface{}{"tools": toolCatalog()},
	})
	if s.err != nil {
		return
	}

	ticker := time.NewTicker(g.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			s.sendJSON("ping", rpcNotification{JSONRPC: "2.0", Method: "ping"})
			if s.err != nil {
				g.logger.Debug("stream write failed", "connection_id", id, "error", s.err)
				return
			}
		}
	}
}

// eventStream writes server-sent events. The first write error sticks and
// suppresses later writes.
type eventStream struct {
	w   http.ResponseWriter
	rc  *http.ResponseController
	seq int
	err error
}

func (s *eventStream) send(event, data string) {
	if s.err != nil {
		return
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, data); err != nil {
		s.err = err
		return
	}
	s.err = s.rc.Flush()
}

func (s *eventStream) sendJSON(event string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.err = err
		return
	}
	s.send(event, string(b))
}
