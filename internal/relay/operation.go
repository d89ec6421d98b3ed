package relay

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// OperationKind is the kind of an operation as given by its leading keyword.
type OperationKind string

const (
	KindQuery        OperationKind = "query"
	KindMutation     OperationKind = "mutation"
	KindSubscription OperationKind = "subscription"
)

// Operation is one structured operation issued by a UI.
type Operation struct {
	Text      string         `json:"text"`
	Variables map[string]any `json:"variables,omitempty"`
	Name      string         `json:"name,omitempty"`

	// ForceRefresh skips the cache lookup of a read.
	ForceRefresh bool `json:"forceRefresh,omitempty"`
	// UseCache answers a read from the cache only, without the network.
	UseCache bool `json:"useCache,omitempty"`

	// Authorization is forwarded to the upstream as the Authorization header.
	Authorization string `json:"-"`
}

// Kind infers the operation kind from the first keyword of the text. A text
// starting with "{" is the shorthand form of a query.
func (o Operation) Kind() (OperationKind, error) {
	text := stripComments(o.Text)
	if strings.HasPrefix(text, "{") {
		return KindQuery, nil
	}
	end := strings.IndexFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(text)
	}
	switch kw := OperationKind(text[:end]); kw {
	case KindQuery, KindMutation, KindSubscription:
		return kw, nil
	default:
		return "", fmt.Errorf("unrecognized operation keyword %q", kw)
	}
}

// stripComments drops leading whitespace and '#' comment lines.
func stripComments(text string) string {
	for {
		text = strings.TrimLeftFunc(text, unicode.IsSpace)
		if !strings.HasPrefix(text, "#") {
			return text
		}
		nl := strings.IndexByte(text, '\n')
		if nl < 0 {
			return ""
		}
		text = text[nl+1:]
	}
}

// Signature returns the cache key of o: the hex BLAKE2b-256 digest of the
// canonical JSON encoding of its text, variables and Authorization. Map keys
// are encoded in sorted order, so equal variables always produce the same
// signature. Callers with different credentials never share an entry.
func Signature(o Operation) (string, error) {
	data, err := json.Marshal(struct {
		Text          string         `json:"text"`
		Variables     map[string]any `json:"variables"`
		Authorization string         `json:"authorization,omitempty"`
	}{o.Text, o.Variables, o.Authorization})
	if err != nil {
		return "", fmt.Errorf("failed to encode operation: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Result is the outcome of an operation as returned by the upstream.
type Result struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []ResultError   `json:"errors,omitempty"`
}

// ResultError is one error reported by the upstream for an operation.
type ResultError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// OK reports whether r carries data and no errors.
func (r *Result) OK() bool {
	return r != nil && len(r.Errors) == 0 && len(r.Data) > 0 && string(r.Data) != "null"
}

// RootField returns the name of the first field selected at the top level of
// the operation, skipping an alias if one is given.
func (o Operation) RootField() (string, error) {
	text := stripComments(o.Text)
	open := strings.IndexByte(text, '{')
	if open < 0 {
		return "", fmt.Errorf("operation has no selection set")
	}
	rest := text[open+1:]

	name, rest := identifier(rest)
	if after, ok := strings.CutPrefix(strings.TrimLeftFunc(rest, unicode.IsSpace), ":"); ok {
		name, _ = identifier(after)
	}
	if name == "" {
		return "", fmt.Errorf("operation selects no field")
	}
	return name, nil
}

func identifier(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	if end < 0 {
		end = len(s)
	}
	return s[:end], s[end:]
}
