package pubsub

import (
	"context"
	"io"
)

// Bridge carries events between brokers running on different nodes.
// Delivery through a bridge is at-most-once and never replayed.
type Bridge interface {
	io.Closer

	// Publish forwards ev to every node, including this one.
	Publish(ctx context.Context, ev Event) error

	// Run receives events from the bridge and hands them to deliver until ctx
	// is done.
	Run(ctx context.Context, deliver func(Event)) error
}

// Connectable is an optional interface for bridges that need to establish
// a connection before they can be used.
type Connectable interface {
	Connect(ctx context.Context) error
}
