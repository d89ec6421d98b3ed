package authn

import (
	"context"
	"sync"
	"time"

	"github.com/syntrixbase/switchboard/internal/core/identity"
)

// MemoryRevocationStore keeps revoked token ids in process memory.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

var _ identity.RevocationStore = (*MemoryRevocationStore)(nil)

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryRevocationStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expiresAt
	return nil
}

// IsRevoked reports whether jti was revoked; expired entries are pruned lazily.
func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if !exp.IsZero() && s.now().After(exp) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}
