// Package cache stores the results of read operations keyed by operation
// signature.
package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/syntrixbase/switchboard/internal/relay/config"
)

// ErrMiss is returned by Get when no entry is stored for a signature.
var ErrMiss = errors.New("cache miss")

// Entry is one cached read result.
type Entry struct {
	Data []byte `cbor:"1,keyasint"`
	// StoredAt is the unix time in nanoseconds at which the entry was written.
	StoredAt int64 `cbor:"2,keyasint"`
}

// Cache is a signature-addressed result store. Implementations are safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, signature string) (*Entry, error)
	// Put stores e, replacing any previous entry for signature.
	Put(ctx context.Context, signature string, e Entry) error
	// Invalidate drops every entry.
	Invalidate(ctx context.Context) error
	Close() error
}

// Open creates the cache selected by cfg.
func Open(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case config.CacheMemory, "":
		return NewMemory(), nil
	case config.CachePebble:
		return OpenPebble(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown relay cache backend %q", cfg.Backend)
	}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("cache: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeEntry(e Entry) ([]byte, error) {
	return encMode.Marshal(e)
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := decMode.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &e, nil
}
