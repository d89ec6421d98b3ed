package nats

import (
	"github.com/nats-io/nats.go"
)

// natsConnection abstracts the nats.Conn for testing purposes
type natsConnection interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler nats.MsgHandler) (natsSubscription, error)
	Flush() error
	Close()
}

type natsSubscription interface {
	Unsubscribe() error
}

// natsConnectFunc is a function type for connecting to NATS (injectable for testing)
type natsConnectFunc func(url string, opts ...nats.Option) (natsConnection, error)

// conn adapts *nats.Conn to natsConnection.
type conn struct {
	*nats.Conn
}

func (c conn) Subscribe(subject string, handler nats.MsgHandler) (natsSubscription, error) {
	return c.Conn.Subscribe(subject, handler)
}

// defaultNatsConnect is the default implementation that uses nats.Connect
var defaultNatsConnect natsConnectFunc = func(url string, opts ...nats.Option) (natsConnection, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return conn{nc}, nil
}
