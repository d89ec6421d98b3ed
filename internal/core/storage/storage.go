// Package storage defines the data-layer boundary: commits of side-effecting
// operations and the lookups needed to authorize them.
package storage

import (
	"context"

	"github.com/syntrixbase/switchboard/pkg/model"
)

// Store is the data layer. Every mutating method is a commit: once it returns
// nil the change is durable for the backend. Lookups of missing entities
// return model.ErrNotFound; inserts of existing ids return model.ErrConflict.
type Store interface {
	ThreadStore
	MessageStore
	PresenceStore
	FileStore
	KnowledgeStore
	RTCSessionStore

	Close(ctx context.Context) error
}

type ThreadStore interface {
	CreateThread(ctx context.Context, t *model.Thread) error
	GetThread(ctx context.Context, id string) (*model.Thread, error)
	UpdateThread(ctx context.Context, t *model.Thread) error
	// ListThreads returns the threads userID participates in.
	ListThreads(ctx context.Context, userID string) ([]*model.Thread, error)
}

type MessageStore interface {
	InsertMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	UpdateMessage(ctx context.Context, m *model.Message) error
	// ListMessages returns the newest limit messages of a thread, oldest first.
	ListMessages(ctx context.Context, threadID string, limit int) ([]*model.Message, error)
}

type PresenceStore interface {
	SetPresence(ctx context.Context, p *model.Presence) error
	GetPresence(ctx context.Context, userID string) (*model.Presence, error)
}

type FileStore interface {
	InsertEntry(ctx context.Context, e *model.FileEntry) error
	GetEntry(ctx context.Context, id string) (*model.FileEntry, error)
	UpdateEntry(ctx context.Context, e *model.FileEntry) error
	// ListEntries returns the live entries directly inside dir.
	ListEntries(ctx context.Context, dir string) ([]*model.FileEntry, error)
}

type KnowledgeStore interface {
	PutKnowledgeItem(ctx context.Context, k *model.KnowledgeItem) error
	GetKnowledgeItem(ctx context.Context, id string) (*model.KnowledgeItem, error)
	// ListKnowledgeItems returns the live items created by userID.
	ListKnowledgeItems(ctx context.Context, userID string) ([]*model.KnowledgeItem, error)
}

type RTCSessionStore interface {
	InsertRTCSession(ctx context.Context, s *model.RTCSession) error
	GetRTCSession(ctx context.Context, id string) (*model.RTCSession, error)
	UpdateRTCSession(ctx context.Context, s *model.RTCSession) error
}

// Indexer keeps the search index in step with knowledge items.
type Indexer interface {
	Index(ctx context.Context, item *model.KnowledgeItem) error
	Remove(ctx context.Context, id string) error
}

// NopIndexer discards index updates.
type NopIndexer struct{}

func (NopIndexer) Index(context.Context, *model.KnowledgeItem) error { return nil }
func (NopIndexer) Remove(context.Context, string) error              { return nil }
