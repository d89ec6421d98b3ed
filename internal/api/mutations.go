package api

import (
	"encoding/json"
	"net/http"

	"github.com/syntrixbase/switchboard/internal/publisher"
	"github.com/syntrixbase/switchboard/internal/signaling"
	"github.com/syntrixbase/switchboard/pkg/model"
)

func (s *Server) mutationResolvers() map[string]resolver {
	return map[string]resolver{
		"createThread":        s.createThread,
		"updateThread":        s.updateThread,
		"sendMessage":         s.sendMessage,
		"editMessage":         s.editMessage,
		"deleteMessage":       s.deleteMessage,
		"setPresence":         s.setPresence,
		"createDirectory":     s.createDirectory,
		"uploadFile":          s.uploadFile,
		"moveEntry":           s.moveEntry,
		"renameEntry":         s.renameEntry,
		"deleteEntry":         s.deleteEntry,
		"createKnowledgeItem": s.createKnowledgeItem,
		"updateKnowledgeItem": s.updateKnowledgeItem,
		"deleteKnowledgeItem": s.deleteKnowledgeItem,
		"sendSignal":          s.sendSignal,
		"createRTCSession":    s.createRTCSession,
		"endRTCSession":       s.endRTCSession,
	}
}

func (s *Server) createThread(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		Title        string   `json:"title"`
		Participants []string `json:"participants"`
		IsGroup      bool     `json:"isGroup"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.CreateThread(r.Context(), in.Title, in.Participants, in.IsGroup)
}

func (s *Server) updateThread(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		ThreadID string `json:"threadId"`
		publisher.ThreadUpdate
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.UpdateThread(r.Context(), in.ThreadID, in.ThreadUpdate)
}

func (s *Server) sendMessage(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		ThreadID    string   `json:"threadId"`
		Content     string   `json:"content"`
		Attachments []string `json:"attachments"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.SendMessage(r.Context(), in.ThreadID, in.Content, in.Attachments)
}

func (s *Server) editMessage(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		MessageID string `json:"messageId"`
		Content   string `json:"content"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.EditMessage(r.Context(), in.MessageID, in.Content)
}

func (s *Server) deleteMessage(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		MessageID string `json:"messageId"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	if err := s.publisher.DeleteMessage(r.Context(), in.MessageID); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) setPresence(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		Status model.PresenceStatus `json:"status"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.SetPresence(r.Context(), in.Status)
}

func (s *Server) createDirectory(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		Parent string `json:"parent"`
		Name   string `json:"name"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.CreateDirectory(r.Context(), in.Parent, in.Name)
}

func (s *Server) uploadFile(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		Parent   string `json:"parent"`
		Name     string `json:"name"`
		Size     int64  `json:"size"`
		MimeType string `json:"mimeType"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.UploadFile(r.Context(), in.Parent, in.Name, in.Size, in.MimeType)
}

func (s *Server) moveEntry(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		EntryID     string `json:"entryId"`
		Destination string `json:"destination"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.MoveEntry(r.Context(), in.EntryID, in.Destination)
}

func (s *Server) renameEntry(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		EntryID string `json:"entryId"`
		Name    string `json:"name"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.RenameEntry(r.Context(), in.EntryID, in.Name)
}

func (s *Server) deleteEntry(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		EntryID string `json:"entryId"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	if err := s.publisher.DeleteEntry(r.Context(), in.EntryID); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) createKnowledgeItem(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		Name     string   `json:"name"`
		Content  string   `json:"content"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.CreateKnowledgeItem(r.Context(), in.Name, in.Content, in.Category, in.Tags)
}

func (s *Server) updateKnowledgeItem(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		ItemID string `json:"itemId"`
		publisher.KnowledgeUpdate
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.UpdateKnowledgeItem(r.Context(), in.ItemID, in.KnowledgeUpdate)
}

func (s *Server) deleteKnowledgeItem(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		ItemID string `json:"itemId"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	if err := s.publisher.DeleteKnowledgeItem(r.Context(), in.ItemID); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) sendSignal(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		To      string         `json:"to"`
		Type    signaling.Type `json:"type"`
		Payload string         `json:"payload"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.SendSignal(r.Context(), in.To, in.Type, in.Payload)
}

func (s *Server) createRTCSession(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		Participants []string `json:"participants"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	return s.publisher.CreateRTCSession(r.Context(), in.Participants)
}

func (s *Server) endRTCSession(r *http.Request, vars json.RawMessage) (any, error) {
	var in struct {
		SessionID string `json:"sessionId"`
	}
	if err := bind(vars, &in); err != nil {
		return nil, err
	}
	if err := s.publisher.EndRTCSession(r.Context(), in.SessionID); err != nil {
		return nil, err
	}
	return true, nil
}
