package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/syntrixbase/switchboard/internal/core/pubsub"
)

// table routes events to the streams attached to each topic. Not exported.
//
// Lock order is table.mu, then topicEntry.mu, then stream.mu. Delivery only
// takes topicEntry.mu, which serializes publishers of the same topic while
// leaving other topics untouched.
type table struct {
	bufSize int

	mu     sync.RWMutex
	topics map[string]*topicEntry
	closed atomic.Bool

	nextID    atomic.Uint64
	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

type topicEntry struct {
	mu      sync.Mutex
	streams map[uint64]*stream
}

func newTable(bufSize int) *table {
	return &table{
		bufSize: bufSize,
		topics:  make(map[string]*topicEntry),
	}
}

// deliver enqueues ev on every stream attached to its topic.
func (t *table) deliver(ev pubsub.Event) {
	t.published.Add(1)

	t.mu.RLock()
	entry := t.topics[ev.Topic]
	t.mu.RUnlock()
	if entry == nil {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	for _, s := range entry.streams {
		if s.enqueue(ev) {
			t.dropped.Add(1)
			pubsub.EventsDropped.Inc()
		}
	}
}

// attach registers a new stream for topic and starts its pump.
func (t *table) attach(ctx context.Context, topic string) (*stream, error) {
	if t.closed.Load() {
		return nil, ErrBrokerClosed
	}

	s := newStream(t, t.nextID.Add(1), topic, t.bufSize)

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	entry := t.topics[topic]
	if entry == nil {
		entry = &topicEntry{streams: make(map[uint64]*stream)}
		t.topics[topic] = entry
		pubsub.ActiveTopics.Inc()
	}
	entry.mu.Lock()
	entry.streams[s.id] = s
	entry.mu.Unlock()
	t.mu.Unlock()

	pubsub.ActiveStreams.Inc()
	go s.pump(ctx)
	return s, nil
}

// detach removes s from its topic, dropping the topic once it has no streams.
func (t *table) detach(s *stream) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.topics[s.topic]
	if entry == nil {
		return
	}
	entry.mu.Lock()
	if _, ok := entry.streams[s.id]; ok {
		delete(entry.streams, s.id)
		pubsub.ActiveStreams.Dec()
	}
	empty := len(entry.streams) == 0
	entry.mu.Unlock()

	if empty {
		delete(t.topics, s.topic)
		pubsub.ActiveTopics.Dec()
	}
}

// close shuts down the table and all streams. It reports false when the
// table was already closed.
func (t *table) close() bool {
	if t.closed.Swap(true) {
		return false
	}

	t.mu.Lock()
	var streams []*stream
	for _, entry := range t.topics {
		entry.mu.Lock()
		for _, s := range entry.streams {
			streams = append(streams, s)
		}
		entry.mu.Unlock()
	}
	t.mu.Unlock()

	for _, s := range streams {
		s.Close()
	}
	return true
}

func (t *table) isClosed() bool {
	return t.closed.Load()
}

func (t *table) stats() pubsub.Stats {
	t.mu.RLock()
	st := pubsub.Stats{Topics: len(t.topics)}
	for _, entry := range t.topics {
		entry.mu.Lock()
		st.Streams += len(entry.streams)
		entry.mu.Unlock()
	}
	t.mu.RUnlock()

	st.Published = t.published.Load()
	st.Delivered = t.delivered.Load()
	st.Dropped = t.dropped.Load()
	return st
}
