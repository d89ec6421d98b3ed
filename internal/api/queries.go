package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/syntrixbase/switchboard/internal/core/identity"
	"github.com/syntrixbase/switchboard/internal/signaling"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// defaultMessageLimit is the page size of a messages query without a limit.
const defaultMessageLimit = 50

func (s *Server) queryResolvers() map[string]resolver {
	return map[string]resolver{
		"me":               s.me,
		"thread":           s.thread,
		"threads":          s.threads,
		"messages":         s.messages,
		"presence":         s.presence,
		"entry":            s.entry,
		"entries":          s.entries,
		"knowledgeItem":    s.knowledgeItem,
		"knowledgeItems":   s.knowledgeItems,
		"rtcSession":       s.rtcSession,
		"signalingSession": s.signalingSession,
	}
}

func (s *Server) me(r *http.Request, _ json.RawMessage) (any, error) {
	return identity.FromContext(r.Context()), nil
}

func (s *Server) thread(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.readableThread(r.Context(), in.ID)
}

func (s *Server) readableThread(ctx context.Context, threadID string) (*model.Thread, error) {
	id := identity.FromContext(ctx)
	t, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !t.HasParticipant(id.UserID) && !id.IsAdmin() {
		return nil, model.NewError(model.KindForbidden, "user %s may not read thread %s", id.UserID, threadID)
	}
	return t, nil
}

func (s *Server) threads(r *http.Request, _ json.RawMessage) (any, error) {
	id := identity.FromContext(r.Context())
	return s.store.ListThreads(r.Context(), id.UserID)
}

func (s *Server) messages(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		ThreadID string `json:"threadId"`
		Limit    int    `json:"limit"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	if in.Limit <= 0 {
		in.Limit = defaultMessageLimit
	}
	if _, err := s.readableThread(r.Context(), in.ThreadID); err != nil {
		return nil, err
	}

	msgs, err := s.store.ListMessages(r.Context(), in.ThreadID, in.Limit)
	if err != nil {
		return nil, err
	}
	live := make([]*model.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.Deleted {
			live = append(live, m)
		}
	}
	return live, nil
}

func (s *Server) presence(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		UserID string `json:"userId"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	if in.UserID == "" {
		in.UserID = identity.FromContext(r.Context()).UserID
	}
	p, err := s.store.GetPresence(r.Context(), in.UserID)
	if model.KindOf(err) == model.KindNotFound {
		return &model.Presence{UserID: in.UserID, Status: model.PresenceOffline}, nil
	}
	return p, err
}

func (s *Server) entry(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	e, err := s.store.GetEntry(r.Context(), in.ID)
	if err != nil {
		return nil, err
	}
	if e.Deleted {
		return nil, model.NewError(model.KindNotFound, "entry %s not found", in.ID)
	}
	return e, nil
}

func (s *Server) entries(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.store.ListEntries(r.Context(), model.CleanPath(in.Path))
}

func (s *Server) knowledgeItem(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	k, err := s.store.GetKnowledgeItem(r.Context(), in.ID)
	if err != nil {
		return nil, err
	}
	if k.Deleted {
		return nil, model.NewError(model.KindNotFound, "knowledge item %s not found", in.ID)
	}
	return k, nil
}

func (s *Server) knowledgeItems(r *http.Request, _ json.RawMessage) (any, error) {
	id := identity.FromContext(r.Context())
	return s.store.ListKnowledgeItems(r.Context(), id.UserID)
}

func (s *Server) rtcSession(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	id := identity.FromContext(r.Context())
	session, err := s.store.GetRTCSession(r.Context(), in.ID)
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(id.UserID) && !id.IsAdmin() {
		return nil, model.NewError(model.KindForbidden, "user %s may not read session %s", id.UserID, in.ID)
	}
	return session, nil
}

// signalingSession reports the signaling phase between the caller and a peer.
func (s *Server) signalingSession(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		Peer string `json:"peer"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	if in.Peer == "" {
		return nil, model.NewError(model.KindBadInput, "peer is required")
	}
	id := identity.FromContext(r.Context())
	key := signaling.PairKey(id.UserID, in.Peer)
	info, ok := s.publisher.Signaling().Session(key)
	if !ok {
		return nil, model.NewError(model.KindNotFound, "no signaling session with %s", in.Peer)
	}
	return info, nil
}
