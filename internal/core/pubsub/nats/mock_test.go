package nats

import (
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

// loopbackConn delivers published messages to its own subscribers.
type loopbackConn struct {
	mu         sync.Mutex
	handlers   map[string]nats.MsgHandler
	published  []string
	publishErr error
	closed     bool
}

func newLoopbackConn() *loopbackConn {
	return &loopbackConn{handlers: make(map[string]nats.MsgHandler)}
}

func (c *loopbackConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	if c.publishErr != nil {
		c.mu.Unlock()
		return c.publishErr
	}
	c.published = append(c.published, subject)
	var targets []nats.MsgHandler
	for pattern, h := range c.handlers {
		if strings.HasSuffix(pattern, ".*") && strings.HasPrefix(subject, strings.TrimSuffix(pattern, "*")) {
			targets = append(targets, h)
		}
	}
	c.mu.Unlock()

	for _, h := range targets {
		h(&nats.Msg{Subject: subject, Data: data})
	}
	return nil
}

func (c *loopbackConn) Subscribe(subject string, handler nats.MsgHandler) (natsSubscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[subject] = handler
	return &loopbackSub{conn: c, subject: subject}, nil
}

func (c *loopbackConn) Flush() error { return nil }

func (c *loopbackConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *loopbackConn) subscribed(subject string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[subject]
	return ok
}

type loopbackSub struct {
	conn    *loopbackConn
	subject string
}

func (s *loopbackSub) Unsubscribe() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	delete(s.conn.handlers, s.subject)
	return nil
}
