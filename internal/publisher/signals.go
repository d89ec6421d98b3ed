package publisher

import (
	"context"

	"github.com/syntrixbase/switchboard/internal/core/topic"
	"github.com/syntrixbase/switchboard/internal/signaling"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// SendSignal relays a signaling message from the caller to another user once
// the session state machine accepts it. A HANGUP is also echoed to the caller.
func (p *Publisher) SendSignal(ctx context.Context, to string, typ signaling.Type, payload string) (*signaling.Message, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	msg := &signaling.Message{
		ID:        p.newID(),
		From:      id.UserID,
		To:        to,
		Type:      typ,
		Payload:   payload,
		CreatedAt: p.now(),
	}
	if _, err := p.signaling.Handle(ctx, *msg); err != nil {
		return nil, err
	}

	if typ != signaling.TypeHangup {
		p.publish(ctx, "SendSignal", msg, topic.Signal(to))
		return msg, nil
	}

	// A hangup reaches both sides, along with an end notice on their rtc topics.
	p.publish(ctx, "SendSignal", msg, topic.Signal(to), topic.Signal(id.UserID))
	notice := signaling.SessionInfo{PairKey: signaling.PairKey(id.UserID, to), Phase: signaling.PhaseEnded}
	p.publish(ctx, "SendSignal", notice, topic.RTC(id.UserID), topic.RTC(to))
	return msg, nil
}

// CreateRTCSession records a call between participants, the caller among them.
// A two-party session also opens the pair's signaling session.
func (p *Publisher) CreateRTCSession(ctx context.Context, participants []string) (*model.RTCSession, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	members := uniq(participants)
	if len(members) < 2 {
		return nil, badInput("session requires at least two participants")
	}

	session := &model.RTCSession{
		ID:           p.newID(),
		Participants: members,
		Active:       true,
		CreatedAt:    p.now(),
	}
	if !session.HasParticipant(id.UserID) {
		return nil, forbidden(id, "create a session without joining it")
	}
	if err := p.store.InsertRTCSession(ctx, session); err != nil {
		return nil, err
	}

	if len(members) == 2 {
		if _, err := p.signaling.Create(members[0], members[1]); err != nil {
			// The pair is already negotiating; the call record still stands.
			p.logger.Debug("Signaling session not created", "rtc_session", session.ID, "error", err)
		}
	}

	p.publish(ctx, "CreateRTCSession", session, rtcTopics(session)...)
	return session, nil
}

// EndRTCSession closes a session. Ending an inactive session is a no-op.
func (p *Publisher) EndRTCSession(ctx context.Context, sessionID string) error {
	id, err := caller(ctx)
	if err != nil {
		return err
	}
	session, err := p.store.GetRTCSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.HasParticipant(id.UserID) && !id.IsAdmin() {
		return forbidden(id, "end session "+sessionID)
	}
	if !session.Active {
		return nil
	}

	ended := p.now()
	session.Active = false
	session.EndedAt = &ended
	if err := p.store.UpdateRTCSession(ctx, session); err != nil {
		return err
	}

	if len(session.Participants) == 2 {
		p.signaling.End(signaling.PairKey(session.Participants[0], session.Participants[1]))
	}

	p.publish(ctx, "EndRTCSession", session, rtcTopics(session)...)
	return nil
}

// rtcTopics lists the session topic and each participant's topic.
func rtcTopics(s *model.RTCSession) []string {
	topics := []string{topic.RTC(s.ID)}
	for _, u := range s.Participants {
		topics = append(topics, topic.RTC(u))
	}
	return topics
}
