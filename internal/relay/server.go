package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syntrixbase/switchboard/pkg/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// Frame types accepted on the relay socket. A frame without a type executes.
const (
	FrameExecute = "execute"
	FrameCancel  = "cancel"
	FrameCall    = "call"
	FrameAccept  = "accept"
	FrameHangup  = "hangup"
)

type frame struct {
	Type      string    `json:"type,omitempty"`
	ID        string    `json:"id"`
	Operation Operation `json:"operation"`
	// Peer is the remote user of call, accept and hangup frames.
	Peer string `json:"peer,omitempty"`
}

// Caller places and answers calls for the relay's user.
type Caller interface {
	Call(ctx context.Context, remote string) error
	Accept(ctx context.Context, remote string) error
	Hangup(ctx context.Context, remote string) error
}

// Server exposes a Relay to UIs over a WebSocket. Each request is answered
// by exactly one reply carrying its id; replies of concurrent requests may
// arrive in any order.
type Server struct {
	relay    *Relay
	caller   Caller
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewServer(r *Relay) *Server {
	return &Server{
		relay: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     localOrigin,
		},
		logger: r.logger.With("transport", "ws"),
	}
}

// localOrigin accepts requests without an origin and from same-host or
// loopback pages.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	reqHost, _, _ := strings.Cut(r.Host, ":")
	return strings.EqualFold(host, reqHost) || host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// SetCaller enables the call frames. Without a caller they are rejected.
func (s *Server) SetCaller(c Caller) {
	s.caller = c
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/relay", s.HandleWS)
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &session{
		server:        s,
		conn:          conn,
		send:          make(chan Reply, 64),
		ctx:           ctx,
		cancel:        cancel,
		authorization: r.Header.Get("Authorization"),
		inflight:      make(map[string]context.CancelFunc),
	}
	go c.writePump()
	c.readPump()
}

// session is one relay socket.
type session struct {
	server        *Server
	conn          *websocket.Conn
	send          chan Reply
	ctx           context.Context
	cancel        context.CancelFunc
	authorization string

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

func (c *session) readPump() {
	defer func() {
		c.cancel()
		c.wg.Wait()
		close(c.send)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("Relay connection closed", "error", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.reply(Reply{Type: ReplyTypeError, Error: &ReplyError{Code: string(model.KindBadInput), Message: "malformed frame"}})
			continue
		}
		switch f.Type {
		case "", FrameExecute:
			c.execute(f)
		case FrameCancel:
			c.cancelRequest(f.ID)
		case FrameCall, FrameAccept, FrameHangup:
			c.control(f)
		default:
			c.reply(Reply{Type: ReplyTypeError, ID: f.ID, Error: &ReplyError{Code: string(model.KindBadInput), Message: "unknown frame type " + f.Type}})
		}
	}
}

func (c *session) execute(f frame) {
	if f.ID == "" {
		c.reply(Reply{Type: ReplyTypeError, Error: &ReplyError{Code: string(model.KindBadInput), Message: "request id is required"}})
		return
	}

	c.mu.Lock()
	if _, busy := c.inflight[f.ID]; busy {
		c.mu.Unlock()
		c.reply(Reply{Type: ReplyTypeError, ID: f.ID, Error: &ReplyError{Code: string(model.KindConflict), Message: "request id in use"}})
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.inflight[f.ID] = cancel
	c.mu.Unlock()

	op := f.Operation
	if op.Authorization == "" {
		op.Authorization = c.authorization
	}
	replies := c.server.relay.Submit(ctx, Request{ID: f.ID, Operation: op})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		reply := <-replies

		c.mu.Lock()
		delete(c.inflight, f.ID)
		c.mu.Unlock()
		cancel()

		c.reply(reply)
	}()
}

// control runs a call frame. Its reply carries the peer on success.
func (c *session) control(f frame) {
	caller := c.server.caller
	switch {
	case caller == nil:
		c.reply(Reply{Type: ReplyTypeError, ID: f.ID, Error: &ReplyError{Code: string(model.KindBadInput), Message: "calls are not enabled on this relay"}})
		return
	case f.ID == "" || f.Peer == "":
		c.reply(Reply{Type: ReplyTypeError, ID: f.ID, Error: &ReplyError{Code: string(model.KindBadInput), Message: "id and peer are required"}})
		return
	}

	do := caller.Call
	switch f.Type {
	case FrameAccept:
		do = caller.Accept
	case FrameHangup:
		do = caller.Hangup
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := do(c.ctx, f.Peer); err != nil {
			c.reply(replyFor(f.ID, nil, err))
			return
		}
		data, _ := json.Marshal(map[string]string{"peer": f.Peer})
		c.reply(Reply{Type: ReplyTypeResult, ID: f.ID, Data: data})
	}()
}

func (c *session) cancelRequest(id string) {
	c.mu.Lock()
	cancel := c.inflight[id]
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *session) reply(r Reply) {
	select {
	case c.send <- r:
	case <-c.ctx.Done():
	}
}

func (c *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		_ = c.conn.Close()
	}()
	for {
		select {
		case r, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(r); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
