// Package testing provides mock implementations of pubsub interfaces for testing.
package testing

import (
	"context"
	"sync"

	"github.com/syntrixbase/switchboard/internal/core/pubsub"
	"github.com/syntrixbase/switchboard/internal/core/pubsub/memory"
)

// PublishedMessage represents a message that was published.
type PublishedMessage struct {
	Topic   string
	Payload []byte
}

// MockBroker records every publish and forwards successful ones to an
// in-memory broker, so tests can both inspect and subscribe.
type MockBroker struct {
	mu       sync.Mutex
	messages []PublishedMessage
	err      error
	inner    *memory.Broker
}

var _ pubsub.Broker = (*MockBroker)(nil)

// NewMockBroker creates a new MockBroker.
func NewMockBroker() *MockBroker {
	return &MockBroker{inner: memory.New(pubsub.Options{BufferSize: 256})}
}

// Publish records the message, or returns the configured error.
func (m *MockBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return err
	}
	m.messages = append(m.messages, PublishedMessage{
		Topic:   topic,
		Payload: append([]byte(nil), payload...),
	})
	m.mu.Unlock()

	return m.inner.Publish(ctx, topic, payload)
}

func (m *MockBroker) Subscribe(ctx context.Context, topic string) (pubsub.Stream, error) {
	return m.inner.Subscribe(ctx, topic)
}

func (m *MockBroker) Close() error {
	return m.inner.Close()
}

// Messages returns a copy of all published messages.
func (m *MockBroker) Messages() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]PublishedMessage, len(m.messages))
	copy(result, m.messages)
	return result
}

// Topics returns the topics of all published messages in publish order.
func (m *MockBroker) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := make([]string, len(m.messages))
	for i, msg := range m.messages {
		topics[i] = msg.Topic
	}
	return topics
}

// SetError makes subsequent Publish calls fail with err.
func (m *MockBroker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Reset clears all recorded messages and errors.
func (m *MockBroker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	m.err = nil
}
