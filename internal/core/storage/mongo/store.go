package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/syntrixbase/switchboard/internal/core/storage"
	"github.com/syntrixbase/switchboard/pkg/model"
)

const (
	collThreads   = "threads"
	collMessages  = "messages"
	collPresence  = "presence"
	collEntries   = "file_entries"
	collKnowledge = "knowledge_items"
	collSessions  = "rtc_sessions"
)

// Store implements storage.Store with one collection per entity kind.
type Store struct {
	provider  *Provider
	threads   *mongo.Collection
	messages  *mongo.Collection
	presence  *mongo.Collection
	entries   *mongo.Collection
	knowledge *mongo.Collection
	sessions  *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

func NewStore(p *Provider) *Store {
	db := p.Database()
	return &Store{
		provider:  p,
		threads:   db.Collection(collThreads),
		messages:  db.Collection(collMessages),
		presence:  db.Collection(collPresence),
		entries:   db.Collection(collEntries),
		knowledge: db.Collection(collKnowledge),
		sessions:  db.Collection(collSessions),
	}
}

// EnsureIndexes creates the secondary indexes used by the list queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll *mongo.Collection
		keys bson.D
	}{
		{s.threads, bson.D{{Key: "participants", Value: 1}, {Key: "updatedAt", Value: -1}}},
		{s.messages, bson.D{{Key: "threadId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{s.entries, bson.D{{Key: "path", Value: 1}}},
		{s.knowledge, bson.D{{Key: "createdBy", Value: 1}, {Key: "updatedAt", Value: -1}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: idx.keys}); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

func insertOne[T any](ctx context.Context, coll *mongo.Collection, id string, v *T) error {
	_, err := coll.InsertOne(ctx, v)
	if mongo.IsDuplicateKeyError(err) {
		return model.NewError(model.KindConflict, "%s %s already exists", coll.Name(), id)
	}
	return model.WrapError(err)
}

func replaceOne[T any](ctx context.Context, coll *mongo.Collection, id string, v *T, upsert bool) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, v, options.Replace().SetUpsert(upsert))
	if err != nil {
		return model.WrapError(err)
	}
	if !upsert && res.MatchedCount == 0 {
		return model.NewError(model.KindNotFound, "%s %s not found", coll.Name(), id)
	}
	return nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, id string) (*T, error) {
	var v T
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.NewError(model.KindNotFound, "%s %s not found", coll.Name(), id)
	}
	if err != nil {
		return nil, model.WrapError(err)
	}
	return &v, nil
}

func findMany[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]*T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, model.WrapError(err)
	}
	defer cur.Close(ctx)

	var out []*T
	if err := cur.All(ctx, &out); err != nil {
		return nil, model.WrapError(err)
	}
	return out, nil
}

func (s *Store) CreateThread(ctx context.Context, t *model.Thread) error {
	return insertOne(ctx, s.threads, t.ID, t)
}

func (s *Store) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	return findOne[model.Thread](ctx, s.threads, id)
}

func (s *Store) UpdateThread(ctx context.Context, t *model.Thread) error {
	return replaceOne(ctx, s.threads, t.ID, t, false)
}

func (s *Store) ListThreads(ctx context.Context, userID string) ([]*model.Thread, error) {
	return findMany[model.Thread](ctx, s.threads,
		bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
}

func (s *Store) InsertMessage(ctx context.Context, m *model.Message) error {
	return insertOne(ctx, s.messages, m.ID, m)
}

func (s *Store) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	return findOne[model.Message](ctx, s.messages, id)
}

func (s *Store) UpdateMessage(ctx context.Context, m *model.Message) error {
	return replaceOne(ctx, s.messages, m.ID, m, false)
}

func (s *Store) ListMessages(ctx context.Context, threadID string, limit int) ([]*model.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	out, err := findMany[model.Message](ctx, s.messages,
		bson.M{"threadId": threadID, "deleted": bson.M{"$ne": true}}, opts)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (s *Store) SetPresence(ctx context.Context, p *model.Presence) error {
	return replaceOne(ctx, s.presence, p.UserID, p, true)
}

func (s *Store) GetPresence(ctx context.Context, userID string) (*model.Presence, error) {
	return findOne[model.Presence](ctx, s.presence, userID)
}

func (s *Store) InsertEntry(ctx context.Context, e *model.FileEntry) error {
	return insertOne(ctx, s.entries, e.ID, e)
}

func (s *Store) GetEntry(ctx context.Context, id string) (*model.FileEntry, error) {
	return findOne[model.FileEntry](ctx, s.entries, id)
}

func (s *Store) UpdateEntry(ctx context.Context, e *model.FileEntry) error {
	return replaceOne(ctx, s.entries, e.ID, e, false)
}

func (s *Store) ListEntries(ctx context.Context, dir string) ([]*model.FileEntry, error) {
	return findMany[model.FileEntry](ctx, s.entries,
		bson.M{"path": childrenOf(dir), "deleted": bson.M{"$ne": true}},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

// childrenOf matches paths exactly one level below dir.
func childrenOf(dir string) primitive.Regex {
	dir = model.CleanPath(dir)
	prefix := regexp.QuoteMeta(dir)
	if dir == "/" {
		prefix = ""
	}
	return primitive.Regex{Pattern: "^" + prefix + "/[^/]+$"}
}

func (s *Store) PutKnowledgeItem(ctx context.Context, k *model.KnowledgeItem) error {
	return replaceOne(ctx, s.knowledge, k.ID, k, true)
}

func (s *Store) GetKnowledgeItem(ctx context.Context, id string) (*model.KnowledgeItem, error) {
	return findOne[model.KnowledgeItem](ctx, s.knowledge, id)
}

func (s *Store) ListKnowledgeItems(ctx context.Context, userID string) ([]*model.KnowledgeItem, error) {
	return findMany[model.KnowledgeItem](ctx, s.knowledge,
		bson.M{"createdBy": userID, "deleted": bson.M{"$ne": true}},
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
}

func (s *Store) InsertRTCSession(ctx context.Context, rs *model.RTCSession) error {
	return insertOne(ctx, s.sessions, rs.ID, rs)
}

func (s *Store) GetRTCSession(ctx context.Context, id string) (*model.RTCSession, error) {
	return findOne[model.RTCSession](ctx, s.sessions, id)
}

func (s *Store) UpdateRTCSession(ctx context.Context, rs *model.RTCSession) error {
	return replaceOne(ctx, s.sessions, rs.ID, rs, false)
}

func (s *Store) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}
