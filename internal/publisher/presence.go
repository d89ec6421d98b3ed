package publisher

import (
	"context"

	"github.com/syntrixbase/switchboard/internal/core/topic"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// SetPresence records the caller's status and announces it on the caller's
// presence topic and the global one.
func (p *Publisher) SetPresence(ctx context.Context, status model.PresenceStatus) (*model.Presence, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, badInput("unknown presence status %q", status)
	}

	presence := &model.Presence{
		UserID:   id.UserID,
		Status:   status,
		LastSeen: p.now(),
	}
	if err := p.store.SetPresence(ctx, presence); err != nil {
		return nil, err
	}

	p.publish(ctx, "SetPresence", presence, topic.Presence(id.UserID), topic.Presence(""))
	return presence, nil
}
