package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"

	"github.com/syntrixbase/switchboard/internal/core/identity"
	"github.com/syntrixbase/switchboard/internal/gateway/config"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// Server exposes the gateway over WebSocket and Server-Sent Events.
type Server struct {
	gateway  *Gateway
	auth     identity.Authenticator
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
	decoder  *schema.Decoder
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

// NewServer creates a Server. auth may be nil, in which case only identities
// established by the HTTP middleware are accepted.
func NewServer(g *Gateway, auth identity.Authenticator, cfg config.RealtimeConfig) *Server {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = config.DefaultGatewayConfig().Realtime.SendBuffer
	}
	if cfg.SSEHeartbeat <= 0 {
		cfg.SSEHeartbeat = config.DefaultGatewayConfig().Realtime.SSEHeartbeat
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	s := &Server{
		gateway: g,
		auth:    auth,
		cfg:     cfg,
		decoder: decoder,
		logger:  slog.Default().With("component", "gateway.server"),
		clients: make(map[*Client]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// RegisterRoutes mounts the real-time endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mw := func(h http.HandlerFunc) http.Handler { return h }
	if s.auth != nil {
		mw = func(h http.HandlerFunc) http.Handler { return identity.Middleware(s.auth)(h) }
	}
	mux.Handle("GET /v1/realtime", mw(s.HandleWS))
	mux.Handle("GET /v1/realtime/sse", mw(s.HandleSSE))
}

// HandleWS upgrades the request and serves the frame protocol. A caller not
// authenticated by the middleware must send an auth frame before subscribing.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := newClient(s, conn, identity.FromContext(r.Context()))
	if !s.register(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// sseQuery is the query string of an SSE request.
type sseQuery struct {
	Kind Kind `schema:"kind"`
	Args
}

// HandleSSE serves a single subscription as an event stream. The
// subscription is described by the query string, e.g.
// ?kind=messages&threadId=t1.
func (s *Server) HandleSSE(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := identity.Require(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	origin := r.Header.Get("Origin")
	if !s.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	var q sseQuery
	if err := s.decoder.Decode(&q, r.URL.Query()); err != nil {
		http.Error(w, "invalid query", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := s.gateway.Subscribe(ctx, id, q.Kind, q.Args)
	if err != nil {
		http.Error(w, err.Error(), model.HTTPStatus(model.KindOf(err)))
		return
	}
	defer sub.Close()

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}

	logger := s.logger.With("transport", "sse", "user", id.UserID, "topic", sub.Topic())
	logger.Debug("SSE connection established")
	defer logger.Debug("SSE connection closed")

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(s.cfg.SSEHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			frame := eventFrame("default", ev)
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, TypeEvent, frame.Payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) register(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// ClientCount returns the number of open WebSocket connections.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every WebSocket client and rejects new ones.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.cancel()
		_ = c.conn.Close()
	}
}
