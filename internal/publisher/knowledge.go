package publisher

import (
	"context"

	"github.com/syntrixbase/switchboard/internal/core/topic"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// KnowledgeUpdate carries the fields to change on a knowledge item. Nil
// fields are left alone.
type KnowledgeUpdate struct {
	Name     *string  `json:"name,omitempty"`
	Content  *string  `json:"content,omitempty"`
	Category *string  `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func (p *Publisher) CreateKnowledgeItem(ctx context.Context, name, content, category string, tags []string) (*model.KnowledgeItem, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, badInput("knowledge item requires a name")
	}

	now := p.now()
	item := &model.KnowledgeItem{
		ID:        p.newID(),
		Name:      name,
		Content:   content,
		Category:  category,
		Tags:      tags,
		CreatedBy: id.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.store.PutKnowledgeItem(ctx, item); err != nil {
		return nil, err
	}

	p.reindex(ctx, item)
	p.publish(ctx, "CreateKnowledgeItem", item, knowledgeTopics(item)...)
	return item, nil
}

// UpdateKnowledgeItem changes an item and re-indexes it. Only the creator or
// an admin may update it.
func (p *Publisher) UpdateKnowledgeItem(ctx context.Context, itemID string, upd KnowledgeUpdate) (*model.KnowledgeItem, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	item, err := p.modifiableItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !canModify(id, item.CreatedBy) {
		return nil, forbidden(id, "update knowledge item "+itemID)
	}

	if upd.Name != nil {
		if *upd.Name == "" {
			return nil, badInput("knowledge item requires a name")
		}
		item.Name = *upd.Name
	}
	if upd.Content != nil {
		item.Content = *upd.Content
	}
	if upd.Category != nil {
		item.Category = *upd.Category
	}
	if upd.Tags != nil {
		item.Tags = upd.Tags
	}
	item.UpdatedAt = p.now()
	if err := p.store.PutKnowledgeItem(ctx, item); err != nil {
		return nil, err
	}

	p.reindex(ctx, item)
	p.publish(ctx, "UpdateKnowledgeItem", item, knowledgeTopics(item)...)
	return item, nil
}

// DeleteKnowledgeItem marks an item deleted and drops it from the search index.
func (p *Publisher) DeleteKnowledgeItem(ctx context.Context, itemID string) error {
	id, err := caller(ctx)
	if err != nil {
		return err
	}
	item, err := p.modifiableItem(ctx, itemID)
	if err != nil {
		return err
	}
	if !canModify(id, item.CreatedBy) {
		return forbidden(id, "delete knowledge item "+itemID)
	}

	item.Deleted = true
	item.UpdatedAt = p.now()
	if err := p.store.PutKnowledgeItem(ctx, item); err != nil {
		return err
	}

	if err := p.indexer.Remove(ctx, item.ID); err != nil {
		p.logger.Warn("Failed to remove knowledge item from index", "item", item.ID, "error", err)
		indexFailures.Inc()
	}
	p.publish(ctx, "DeleteKnowledgeItem", item, knowledgeTopics(item)...)
	return nil
}

func (p *Publisher) modifiableItem(ctx context.Context, itemID string) (*model.KnowledgeItem, error) {
	item, err := p.store.GetKnowledgeItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Deleted {
		return nil, model.NewError(model.KindNotFound, "knowledge item %s not found", itemID)
	}
	return item, nil
}

func (p *Publisher) reindex(ctx context.Context, item *model.KnowledgeItem) {
	if err := p.indexer.Index(ctx, item); err != nil {
		p.logger.Warn("Failed to index knowledge item", "item", item.ID, "error", err)
		indexFailures.Inc()
	}
}

func knowledgeTopics(item *model.KnowledgeItem) []string {
	return []string{topic.Knowledge(item.ID), topic.Knowledge(item.CreatedBy)}
}
