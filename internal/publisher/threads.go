package publisher

import (
	"context"

	"github.com/syntrixbase/switchboard/internal/core/topic"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// ThreadUpdate describes a change to a thread. Nil or empty fields are left alone.
type ThreadUpdate struct {
	Title  *string  `json:"title,omitempty"`
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

// CreateThread opens a thread owned by the caller, who is always a participant.
func (p *Publisher) CreateThread(ctx context.Context, title string, participants []string, isGroup bool) (*model.Thread, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	members := uniq(append([]string{id.UserID}, participants...))
	for _, m := range members {
		if !model.CheckID(m) {
			return nil, badInput("invalid participant %q", m)
		}
	}
	if len(members) < 2 {
		return nil, badInput("thread requires at least one other participant")
	}
	if !isGroup && len(members) > 2 {
		return nil, badInput("a direct thread has exactly two participants")
	}

	now := p.now()
	thread := &model.Thread{
		ID:           p.newID(),
		Title:        title,
		OwnerID:      id.UserID,
		Participants: members,
		IsGroup:      isGroup,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.store.CreateThread(ctx, thread); err != nil {
		return nil, err
	}

	p.publish(ctx, "CreateThread", thread, threadTopics(thread.ID, members)...)
	return thread, nil
}

// UpdateThread renames a thread or changes its participants. Only the owner
// or an admin may update it, and the owner cannot be removed.
func (p *Publisher) UpdateThread(ctx context.Context, threadID string, upd ThreadUpdate) (*model.Thread, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	thread, err := p.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !canModify(id, thread.OwnerID) {
		return nil, forbidden(id, "update thread "+threadID)
	}

	before := thread.Participants
	removed := make(map[string]bool, len(upd.Remove))
	for _, r := range upd.Remove {
		if r == thread.OwnerID {
			return nil, badInput("cannot remove the thread owner")
		}
		removed[r] = true
	}
	for _, a := range upd.Add {
		if !model.CheckID(a) {
			return nil, badInput("invalid participant %q", a)
		}
	}

	var members []string
	for _, m := range uniq(append(append([]string(nil), before...), upd.Add...)) {
		if !removed[m] {
			members = append(members, m)
		}
	}
	if !thread.IsGroup && len(members) > 2 {
		return nil, badInput("cannot add participants to a direct thread")
	}

	if upd.Title != nil {
		thread.Title = *upd.Title
	}
	thread.Participants = members
	thread.UpdatedAt = p.now()
	if err := p.store.UpdateThread(ctx, thread); err != nil {
		return nil, err
	}

	// Removed participants are told once more so they can drop the thread.
	audience := uniq(append(append([]string(nil), before...), members...))
	p.publish(ctx, "UpdateThread", thread, threadTopics(thread.ID, audience)...)
	return thread, nil
}

func threadTopics(threadID string, users []string) []string {
	topics := make([]string, 0, len(users)+1)
	topics = append(topics, topic.Thread(threadID))
	for _, u := range users {
		topics = append(topics, topic.Thread(u))
	}
	return topics
}
