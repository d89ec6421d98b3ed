package memory

import (
	"context"
	"sync"

	"github.com/syntrixbase/switchboard/internal/core/pubsub"
)

// stream is a bounded queue drained by a pump goroutine onto an unbuffered
// channel. Enqueue never blocks; when the queue is full the oldest event is
// dropped and the gap is carried by the next queued event.
type stream struct {
	table    *table
	id       uint64
	topic    string
	capacity int

	mu     sync.Mutex
	queue  []pubsub.Event
	closed bool

	notify chan struct{}
	out    chan pubsub.Event
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

var _ pubsub.Stream = (*stream)(nil)

func newStream(t *table, id uint64, topic string, capacity int) *stream {
	return &stream{
		table:    t,
		id:       id,
		topic:    topic,
		capacity: capacity,
		queue:    make([]pubsub.Event, 0, capacity),
		notify:   make(chan struct{}, 1),
		out:      make(chan pubsub.Event),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

func (s *stream) Topic() string {
	return s.topic
}

func (s *stream) Events() <-chan pubsub.Event {
	return s.out
}

// Close detaches the stream and waits for the pump to stop.
func (s *stream) Close() {
	s.shutdown()
	<-s.exited
}

func (s *stream) shutdown() {
	s.once.Do(func() {
		s.table.detach(s)
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
	})
}

// enqueue appends ev and reports whether an older event was dropped to make room.
func (s *stream) enqueue(ev pubsub.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	dropped := false
	if len(s.queue) >= s.capacity {
		head := s.queue[0]
		s.queue = s.queue[1:]
		if len(s.queue) > 0 {
			s.queue[0].Gap += head.Gap + 1
		} else {
			ev.Gap += head.Gap + 1
		}
		dropped = true
	}
	s.queue = append(s.queue, ev)

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped
}

func (s *stream) next() (pubsub.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return pubsub.Event{}, false
	}
	ev := s.queue[0]
	s.queue[0] = pubsub.Event{}
	s.queue = s.queue[1:]
	return ev, true
}

func (s *stream) pump(ctx context.Context) {
	defer close(s.exited)
	defer close(s.out)

	for {
		ev, ok := s.next()
		if !ok {
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			case <-ctx.Done():
				s.shutdown()
				return
			}
		}

		select {
		case s.out <- ev:
			s.table.delivered.Add(1)
			pubsub.EventsDelivered.Inc()
		case <-s.done:
			return
		case <-ctx.Done():
			s.shutdown()
			return
		}
	}
}
