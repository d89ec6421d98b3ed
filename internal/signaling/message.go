// Package signaling brokers WebRTC session negotiation between pairs of users.
//
// A Registry tracks one session per unordered pair of users and enforces the
// OFFER, ANSWER, ICE_CANDIDATE, HANGUP ordering. On the server it runs without
// a transport and only validates messages before they are relayed; inside a
// client Agent it drives a Transport such as a WebRTC peer connection.
package signaling

import (
	"strings"
	"time"

	"github.com/syntrixbase/switchboard/pkg/model"
)

// Type is the kind of a signaling message.
type Type string

const (
	TypeOffer        Type = "OFFER"
	TypeAnswer       Type = "ANSWER"
	TypeICECandidate Type = "ICE_CANDIDATE"
	TypeHangup       Type = "HANGUP"
)

// Valid reports whether t is a known message type.
func (t Type) Valid() bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeICECandidate, TypeHangup:
		return true
	}
	return false
}

// Message is the wire form of a signaling message.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Type      Type      `json:"type"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// PairKey identifies the session between a and b regardless of direction.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// SplitPairKey returns the two users of a pair key in sorted order.
func SplitPairKey(key string) (string, string) {
	a, b, _ := strings.Cut(key, "|")
	return a, b
}

func (m *Message) validate() error {
	if !m.Type.Valid() {
		return model.NewError(model.KindBadInput, "unknown signal type %q", m.Type)
	}
	if m.From == "" || m.To == "" {
		return model.NewError(model.KindBadInput, "signal requires from and to")
	}
	if m.From == m.To {
		return model.NewError(model.KindForbidden, "cannot signal yourself")
	}
	return nil
}
