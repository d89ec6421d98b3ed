// Package memory provides an in-process storage.Store for standalone mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/syntrixbase/switchboard/internal/core/storage"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// Store keeps entities in maps guarded by one lock. Values are copied on the
// way in and out so callers never share memory with the store.
type Store struct {
	mu        sync.RWMutex
	threads   map[string]model.Thread
	messages  map[string]model.Message
	presence  map[string]model.Presence
	entries   map[string]model.FileEntry
	knowledge map[string]model.KnowledgeItem
	sessions  map[string]model.RTCSession
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		threads:   make(map[string]model.Thread),
		messages:  make(map[string]model.Message),
		presence:  make(map[string]model.Presence),
		entries:   make(map[string]model.FileEntry),
		knowledge: make(map[string]model.KnowledgeItem),
		sessions:  make(map[string]model.RTCSession),
	}
}

func insert[T any](mu *sync.RWMutex, m map[string]T, id string, v T) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := m[id]; ok {
		return model.NewError(model.KindConflict, "entity %s already exists", id)
	}
	m[id] = v
	return nil
}

func update[T any](mu *sync.RWMutex, m map[string]T, id string, v T) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := m[id]; !ok {
		return model.NewError(model.KindNotFound, "entity %s not found", id)
	}
	m[id] = v
	return nil
}

func get[T any](mu *sync.RWMutex, m map[string]T, id string) (*T, error) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := m[id]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "entity %s not found", id)
	}
	return &v, nil
}

func (s *Store) CreateThread(ctx context.Context, t *model.Thread) error {
	c := *t
	c.Participants = append([]string(nil), t.Participants...)
	return insert(&s.mu, s.threads, t.ID, c)
}

func (s *Store) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	t, err := get(&s.mu, s.threads, id)
	if err != nil {
		return nil, err
	}
	t.Participants = append([]string(nil), t.Participants...)
	return t, nil
}

func (s *Store) UpdateThread(ctx context.Context, t *model.Thread) error {
	c := *t
	c.Participants = append([]string(nil), t.Participants...)
	return update(&s.mu, s.threads, t.ID, c)
}

func (s *Store) ListThreads(ctx context.Context, userID string) ([]*model.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Thread
	for _, t := range s.threads {
		if t.HasParticipant(userID) {
			c := t
			c.Participants = append([]string(nil), t.Participants...)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) InsertMessage(ctx context.Context, m *model.Message) error {
	return insert(&s.mu, s.messages, m.ID, *m)
}

func (s *Store) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	return get(&s.mu, s.messages, id)
}

func (s *Store) UpdateMessage(ctx context.Context, m *model.Message) error {
	return update(&s.mu, s.messages, m.ID, *m)
}

func (s *Store) ListMessages(ctx context.Context, threadID string, limit int) ([]*model.Message, error) {
	s.mu.RLock()
	var out []*model.Message
	for _, m := range s.messages {
		if m.ThreadID == threadID && !m.Deleted {
			c := m
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Store) SetPresence(ctx context.Context, p *model.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[p.UserID] = *p
	return nil
}

func (s *Store) GetPresence(ctx context.Context, userID string) (*model.Presence, error) {
	return get(&s.mu, s.presence, userID)
}

func (s *Store) InsertEntry(ctx context.Context, e *model.FileEntry) error {
	return insert(&s.mu, s.entries, e.ID, *e)
}

func (s *Store) GetEntry(ctx context.Context, id string) (*model.FileEntry, error) {
	return get(&s.mu, s.entries, id)
}

func (s *Store) UpdateEntry(ctx context.Context, e *model.FileEntry) error {
	return update(&s.mu, s.entries, e.ID, *e)
}

func (s *Store) ListEntries(ctx context.Context, dir string) ([]*model.FileEntry, error) {
	dir = model.CleanPath(dir)
	s.mu.RLock()
	var out []*model.FileEntry
	for _, e := range s.entries {
		if !e.Deleted && e.ParentPath() == dir {
			c := e
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) PutKnowledgeItem(ctx context.Context, k *model.KnowledgeItem) error {
	c := *k
	c.Tags = append([]string(nil), k.Tags...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knowledge[k.ID] = c
	return nil
}

func (s *Store) GetKnowledgeItem(ctx context.Context, id string) (*model.KnowledgeItem, error) {
	return get(&s.mu, s.knowledge, id)
}

func (s *Store) ListKnowledgeItems(ctx context.Context, userID string) ([]*model.KnowledgeItem, error) {
	s.mu.RLock()
	var out []*model.KnowledgeItem
	for _, k := range s.knowledge {
		if !k.Deleted && k.CreatedBy == userID {
			c := k
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) InsertRTCSession(ctx context.Context, rs *model.RTCSession) error {
	c := *rs
	c.Participants = append([]string(nil), rs.Participants...)
	return insert(&s.mu, s.sessions, rs.ID, c)
}

func (s *Store) GetRTCSession(ctx context.Context, id string) (*model.RTCSession, error) {
	return get(&s.mu, s.sessions, id)
}

func (s *Store) UpdateRTCSession(ctx context.Context, rs *model.RTCSession) error {
	c := *rs
	c.Participants = append([]string(nil), rs.Participants...)
	return update(&s.mu, s.sessions, rs.ID, c)
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}
