package model

import (
	"path"
	"regexp"
	"strings"
	"time"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{1,64}$`)

// CheckID reports whether id is usable as an entity or user identifier.
func CheckID(id string) bool {
	return idRegex.MatchString(id)
}

// Role values carried by an identity.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// PresenceStatus is the advertised availability of a user.
type PresenceStatus string

const (
	PresenceOnline       PresenceStatus = "ONLINE"
	PresenceAway         PresenceStatus = "AWAY"
	PresenceOffline      PresenceStatus = "OFFLINE"
	PresenceDoNotDisturb PresenceStatus = "DO_NOT_DISTURB"
)

// Valid reports whether s is a known status.
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceOffline, PresenceDoNotDisturb:
		return true
	}
	return false
}

// MessageType is the content type of a chat message.
type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageFile   MessageType = "FILE"
	MessageImage  MessageType = "IMAGE"
	MessageSystem MessageType = "SYSTEM"
)

type Thread struct {
	ID           string    `json:"id" bson:"_id"`
	Title        string    `json:"title" bson:"title"`
	OwnerID      string    `json:"ownerId" bson:"ownerId"`
	Participants []string  `json:"participants" bson:"participants"`
	IsGroup      bool      `json:"isGroup" bson:"isGroup"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasParticipant reports whether userID belongs to the thread.
func (t *Thread) HasParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID          string      `json:"id" bson:"_id"`
	ThreadID    string      `json:"threadId" bson:"threadId"`
	SenderID    string      `json:"senderId" bson:"senderId"`
	Content     string      `json:"content" bson:"content"`
	Type        MessageType `json:"type" bson:"type"`
	Attachments []string    `json:"attachments,omitempty" bson:"attachments,omitempty"`
	Edited      bool        `json:"edited" bson:"edited"`
	Deleted     bool        `json:"deleted,omitempty" bson:"deleted,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt" bson:"updatedAt"`
}

type Presence struct {
	UserID   string         `json:"userId" bson:"_id"`
	Status   PresenceStatus `json:"status" bson:"status"`
	LastSeen time.Time      `json:"lastSeen" bson:"lastSeen"`
}

// FileEntryType distinguishes directories from files.
type FileEntryType string

const (
	EntryFile      FileEntryType = "FILE"
	EntryDirectory FileEntryType = "DIRECTORY"
)

type FileEntry struct {
	ID        string        `json:"id" bson:"_id"`
	Name      string        `json:"name" bson:"name"`
	Path      string        `json:"path" bson:"path"`
	Type      FileEntryType `json:"type" bson:"type"`
	OwnerID   string        `json:"ownerId" bson:"ownerId"`
	Size      int64         `json:"size,omitempty" bson:"size,omitempty"`
	MimeType  string        `json:"mimeType,omitempty" bson:"mimeType,omitempty"`
	Deleted   bool          `json:"deleted,omitempty" bson:"deleted,omitempty"`
	CreatedAt time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// ParentPath returns the directory containing the entry, "/" at the root.
func (e *FileEntry) ParentPath() string {
	return ParentOf(e.Path)
}

// CleanPath normalizes a file-system path to an absolute, slash-separated form.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// ParentOf returns the parent directory of p.
func ParentOf(p string) string {
	return path.Dir(CleanPath(p))
}

type KnowledgeItem struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Content   string    `json:"content" bson:"content"`
	Category  string    `json:"category,omitempty" bson:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty" bson:"tags,omitempty"`
	CreatedBy string    `json:"createdBy" bson:"createdBy"`
	Deleted   bool      `json:"deleted,omitempty" bson:"deleted,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

type RTCSession struct {
	ID           string     `json:"id" bson:"_id"`
	Participants []string   `json:"participants" bson:"participants"`
	Active       bool       `json:"active" bson:"active"`
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
}

// HasParticipant reports whether userID belongs to the session.
func (s *RTCSession) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
