package signaling

import "context"

// Transport is the media connection negotiated by a session.
type Transport interface {
	// ApplyLocalDescription creates and applies a local OFFER or ANSWER and
	// returns the description to send to the remote side.
	ApplyLocalDescription(ctx context.Context, kind Type) (string, error)

	// ApplyRemoteDescription applies the remote side's OFFER or ANSWER.
	ApplyRemoteDescription(ctx context.Context, kind Type, sdp string) error

	AddICECandidate(ctx context.Context, candidate string) error

	Close() error
}

// Callbacks are raised by a Transport for the session that owns it.
type Callbacks struct {
	OnICECandidate func(candidate string)
	OnConnected    func()
	OnError        func(err error)
	OnClose        func()
}

// TransportFactory creates the transport of a new session.
type TransportFactory func(local, remote string, cb Callbacks) (Transport, error)

// Outbox delivers signaling messages to their recipient.
type Outbox interface {
	Send(ctx context.Context, msg Message) error
}

// OutboxFunc adapts a function to Outbox.
type OutboxFunc func(ctx context.Context, msg Message) error

func (f OutboxFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
