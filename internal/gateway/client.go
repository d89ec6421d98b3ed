package gateway

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

	"github.com/syntrixbase/switchboard/internal/core/identity"
	"github.com/syntrixbase/switchboard/internal/core/pubsub"
	"github.com/syntrixbase/switchboard/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// Send pings to peer with this period. Must be less than pongWait.
var pingPeriod = (pongWait * 9) / 10

// Client is one WebSocket connection and the subscriptions it holds.
type Client struct {
	server *Server
	conn   *websocket.Conn
	send   chan BaseMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	mu            sync.Mutex
	identity      *identity.Identity
	subscriptions map[string]*Subscription
}

func newClient(s *Server, conn *websocket.Conn, id *identity.Identity) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		server:        s,
		conn:          conn,
		send:          make(chan BaseMessage, s.cfg.SendBuffer),
		ctx:           ctx,
		cancel:        cancel,
		logger:        s.logger.With("transport", "ws"),
		identity:      id,
		subscriptions: make(map[string]*Subscription),
	}
}

// readPump pumps frames from the connection. It is the only reader.
// On exit every subscription is closed before the send channel.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.closeAll()
		c.wg.Wait()
		close(c.send)
		c.server.unregister(c)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })
	c.logger.Debug("WebSocket connection established")

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket connection closed", "error", err)
			} else {
				c.logger.Debug("WebSocket connection closed")
			}
			return
		}

		var msg BaseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(errorFrame("", "bad_request", "malformed frame"))
			continue
		}
		c.handleMessage(msg)
	}
}

// writePump is the only writer to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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

func (c *Client) enqueue(msg BaseMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) handleMessage(msg BaseMessage) {
	switch msg.Type {
	case TypeAuth:
		c.handleAuth(msg)
	case TypeSubscribe:
		c.handleSubscribe(msg)
	case TypeUnsubscribe:
		c.handleUnsubscribe(msg)
	default:
		c.enqueue(errorFrame(msg.ID, "bad_request", "unknown frame type "+msg.Type))
	}
}

func (c *Client) handleAuth(msg BaseMessage) {
	var payload AuthPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Token == "" {
		c.enqueue(errorFrame(msg.ID, "invalid_auth", "invalid payload"))
		return
	}
	if c.server.auth == nil {
		c.enqueue(errorFrame(msg.ID, "unauthorized", "authentication unavailable"))
		return
	}
	id, err := c.server.auth.Authenticate(c.ctx, payload.Token)
	if err != nil {
		c.enqueue(errorFrame(msg.ID, "unauthorized", "invalid token"))
		return
	}

	c.mu.Lock()
	switched := c.identity != nil && c.identity.UserID != id.UserID
	c.identity = id
	c.mu.Unlock()

	// Streams derived from a previous identity must not outlive it.
	if switched {
		c.closeAll()
	}
	c.enqueue(BaseMessage{ID: msg.ID, Type: TypeAuthAck})
}

func (c *Client) handleSubscribe(msg BaseMessage) {
	c.mu.Lock()
	id := c.identity
	count := len(c.subscriptions)
	_, exists := c.subscriptions[msg.ID]
	c.mu.Unlock()

	if id == nil {
		c.enqueue(errorFrame(msg.ID, "unauthorized", "auth required"))
		return
	}
	if msg.ID == "" || exists {
		c.enqueue(errorFrame(msg.ID, "bad_request", "subscription id missing or in use"))
		return
	}
	if limit := c.server.cfg.MaxSubscriptions; limit > 0 && count >= limit {
		c.enqueue(errorFrame(msg.ID, "too_many_subscriptions", "subscription limit reached"))
		return
	}
	var payload SubscribePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.enqueue(errorFrame(msg.ID, "bad_request", "invalid subscribe payload"))
		return
	}

	sub, err := c.server.gateway.Subscribe(c.ctx, id, payload.Kind, payload.Args)
	if err != nil {
		c.enqueue(errorFrame(msg.ID, errorCode(err), err.Error()))
		return
	}

	c.mu.Lock()
	c.subscriptions[msg.ID] = sub
	c.mu.Unlock()

	c.enqueue(BaseMessage{ID: msg.ID, Type: TypeSubscribeAck})
	c.wg.Add(1)
	go c.forward(msg.ID, sub)
}

func (c *Client) handleUnsubscribe(msg BaseMessage) {
	var payload UnsubscribePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.enqueue(errorFrame(msg.ID, "bad_request", "invalid unsubscribe payload"))
		return
	}

	c.mu.Lock()
	sub := c.subscriptions[payload.ID]
	delete(c.subscriptions, payload.ID)
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	c.enqueue(BaseMessage{ID: msg.ID, Type: TypeUnsubscribeAck})
}

// forward copies events of one subscription onto the send channel until the
// subscription closes.
func (c *Client) forward(subID string, sub *Subscription) {
	defer c.wg.Done()
	for ev := range sub.Events() {
		if !c.enqueue(eventFrame(subID, ev)) {
			return
		}
	}
}

func (c *Client) closeAll() {
	c.mu.Lock()
	subs := c.subscriptions
	c.subscriptions = make(map[string]*Subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func eventFrame(subID string, ev pubsub.Event) BaseMessage {
	data := json.RawMessage(ev.Payload)
	if !json.Valid(data) {
		data = mustMarshal(string(ev.Payload))
	}
	return BaseMessage{
		ID:   subID,
		Type: TypeEvent,
		Payload: mustMarshal(EventPayload{
			SubID:       subID,
			EventID:     ev.ID,
			Topic:       ev.Topic,
			Data:        data,
			PublishedAt: ev.PublishedAt,
			Gap:         ev.Gap,
		}),
	}
}

// errorCode renders an error kind as a frame error code.
func errorCode(err error) string {
	return strings.ToLower(string(model.KindOf(err)))
}

// checkAllowedOrigin accepts same-host origins, configured origins and, in
// development, localhost.
func checkAllowedOrigin(origin, reqHost string, allowed []string, allowDev bool) bool {
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	originHost := strings.Split(parsed.Host, ":")[0]
	reqHostPart := strings.Split(reqHost, ":")[0]
	if strings.EqualFold(originHost, reqHostPart) {
		return true
	}
	if allowDev && (originHost == "localhost" || originHost == "127.0.0.1") {
		return true
	}

	trimmed := strings.TrimRight(origin, "/")
	for _, a := range allowed {
		if a != "" && strings.EqualFold(strings.TrimRight(a, "/"), trimmed) {
			return true
		}
	}
	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	return checkAllowedOrigin(r.Header.Get("Origin"), r.Host, s.cfg.AllowedOrigins, s.cfg.AllowDevOrigin)
}
