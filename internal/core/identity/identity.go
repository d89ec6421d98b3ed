// Package identity resolves request credentials into an authenticated Identity
// and carries that identity through request contexts.
package identity

import (
	"context"
	"time"

	"github.com/syntrixbase/switchboard/internal/ctxkeys"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// Identity is the authenticated caller of an operation or subscription.
type Identity struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username,omitempty"`
	Role      string    `json:"role"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// IsAdmin reports whether the identity carries the ADMIN role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == model.RoleAdmin
}

// Authenticator resolves credentials into an identity.
// An error means no identity could be established from the credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, credentials string) (*Identity, error)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxkeys.KeyIdentity, id)
}

// FromContext returns the identity stored in ctx, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxkeys.KeyIdentity).(*Identity)
	return id
}

// Require returns the identity stored in ctx or model.ErrUnauthenticated.
func Require(ctx context.Context) (*Identity, error) {
	id := FromContext(ctx)
	if id == nil || id.UserID == "" {
		return nil, model.ErrUnauthenticated
	}
	return id, nil
}

// RevocationStore records revoked token ids until the tokens expire.
type RevocationStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
