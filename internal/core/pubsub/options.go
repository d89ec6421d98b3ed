package pubsub

// DefaultBufferSize is the per-stream queue length used when none is configured.
const DefaultBufferSize = 64

// Options configures a broker.
type Options struct {
	// BufferSize bounds the events queued for a single stream. When the queue
	// is full the oldest event is dropped and the next delivered event reports
	// the gap.
	BufferSize int

	// Bridge, when set, carries every publish through an external transport so
	// that brokers on several nodes fan out the same sequence.
	Bridge Bridge
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		BufferSize: DefaultBufferSize,
	}
}
