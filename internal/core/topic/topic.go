// Package topic builds and parses broker topic names of the form <domain>:<scope>.
package topic

import (
	"fmt"
	"strings"

	"github.com/syntrixbase/switchboard/pkg/model"
)

// Domain is the leading segment of a topic.
type Domain string

const (
	DomainMessage   Domain = "message"
	DomainThread    Domain = "thread"
	DomainPresence  Domain = "presence"
	DomainFS        Domain = "fs"
	DomainKnowledge Domain = "knowledge"
	DomainSignal    Domain = "signal"
	DomainRTC       Domain = "rtc"
)

const sep = ":"

var domains = map[Domain]bool{
	DomainMessage:   true,
	DomainThread:    true,
	DomainPresence:  true,
	DomainFS:        true,
	DomainKnowledge: true,
	DomainSignal:    true,
	DomainRTC:       true,
}

// segmentEscaper keeps a scope segment from spanning two segments: "bob:t1"
// as a single id must not equal the scope "bob" narrowed to "t1".
var segmentEscaper = strings.NewReplacer("%", "%25", sep, "%3A")

// Build joins a domain and its scope segments. Empty segments are skipped and
// separators inside a segment are escaped.
func Build(d Domain, scope ...string) string {
	var sb strings.Builder
	sb.WriteString(string(d))
	for _, s := range scope {
		if s == "" {
			continue
		}
		sb.WriteString(sep)
		sb.WriteString(segmentEscaper.Replace(s))
	}
	return sb.String()
}

// Message is the delivery topic for a recipient, optionally narrowed to a thread.
func Message(recipientID, threadID string) string {
	return Build(DomainMessage, recipientID, threadID)
}

func Thread(scopeID string) string {
	return Build(DomainThread, scopeID)
}

// Presence returns the per-user presence topic, or the global one when userID is empty.
func Presence(userID string) string {
	return Build(DomainPresence, userID)
}

// FS returns the topic for changes inside directory dir.
func FS(dir string) string {
	return string(DomainFS) + sep + model.CleanPath(dir)
}

func Knowledge(scopeID string) string {
	return Build(DomainKnowledge, scopeID)
}

func Signal(userID string) string {
	return Build(DomainSignal, userID)
}

func RTC(sessionID string) string {
	return Build(DomainRTC, sessionID)
}

// Parse splits a topic into its domain and scope. The scope of fs topics keeps
// its slashes; other scopes are returned as written, segments still escaped.
func Parse(t string) (Domain, string, error) {
	d, scope, _ := strings.Cut(t, sep)
	if !domains[Domain(d)] {
		return "", "", fmt.Errorf("unknown topic domain %q", d)
	}
	return Domain(d), scope, nil
}

// Valid reports whether t has a known domain.
func Valid(t string) bool {
	_, _, err := Parse(t)
	return err == nil
}
