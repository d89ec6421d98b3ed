package publisher

import (
	"context"

	"github.com/syntrixbase/switchboard/internal/core/topic"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// SendMessage appends a message to a thread the caller participates in and
// delivers it to every other participant.
func (p *Publisher) SendMessage(ctx context.Context, threadID, content string, attachments []string) (*model.Message, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if content == "" && len(attachments) == 0 {
		return nil, badInput("message requires content or attachments")
	}

	thread, err := p.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(id.UserID) {
		return nil, forbidden(id, "post to thread "+threadID)
	}

	now := p.now()
	msg := &model.Message{
		ID:          p.newID(),
		ThreadID:    threadID,
		SenderID:    id.UserID,
		Content:     content,
		Type:        model.MessageText,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(attachments) > 0 {
		msg.Type = model.MessageFile
	}
	if err := p.store.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	p.publish(ctx, "SendMessage", msg, messageTopics(thread, id.UserID)...)
	return msg, nil
}

// EditMessage replaces the content of a message. Only its sender or an admin may edit.
func (p *Publisher) EditMessage(ctx context.Context, messageID, content string) (*model.Message, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, badInput("message content is empty")
	}

	msg, err := p.liveMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !canModify(id, msg.SenderID) {
		return nil, forbidden(id, "edit message "+messageID)
	}
	thread, err := p.store.GetThread(ctx, msg.ThreadID)
	if err != nil {
		return nil, err
	}

	msg.Content = content
	msg.Edited = true
	msg.UpdatedAt = p.now()
	if err := p.store.UpdateMessage(ctx, msg); err != nil {
		return nil, err
	}

	p.publish(ctx, "EditMessage", msg, messageTopics(thread, msg.SenderID)...)
	return msg, nil
}

// DeleteMessage marks a message deleted. The sender, the thread owner or an
// admin may delete it.
func (p *Publisher) DeleteMessage(ctx context.Context, messageID string) error {
	id, err := caller(ctx)
	if err != nil {
		return err
	}

	msg, err := p.liveMessage(ctx, messageID)
	if err != nil {
		return err
	}
	thread, err := p.store.GetThread(ctx, msg.ThreadID)
	if err != nil {
		return err
	}
	if !canModify(id, msg.SenderID) && thread.OwnerID != id.UserID {
		return forbidden(id, "delete message "+messageID)
	}

	msg.Deleted = true
	msg.UpdatedAt = p.now()
	if err := p.store.UpdateMessage(ctx, msg); err != nil {
		return err
	}

	p.publish(ctx, "DeleteMessage", msg, messageTopics(thread, msg.SenderID)...)
	return nil
}

func (p *Publisher) liveMessage(ctx context.Context, messageID string) (*model.Message, error) {
	msg, err := p.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, model.NewError(model.KindNotFound, "message %s not found", messageID)
	}
	return msg, nil
}

// messageTopics lists the delivery topics of every participant except sender.
func messageTopics(thread *model.Thread, sender string) []string {
	topics := make([]string, 0, 2*len(thread.Participants))
	for _, participant := range thread.Participants {
		if participant == sender {
			continue
		}
		topics = append(topics,
			topic.Message(participant, ""),
			topic.Message(participant, thread.ID))
	}
	return topics
}
