// Package authn validates bearer credentials and maps them to identities.
package authn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/switchboard/internal/core/identity"
	"github.com/syntrixbase/switchboard/internal/core/identity/config"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// Authenticator implements identity.Authenticator over RS256 JWTs, with
// optional static development tokens and revocation checks.
type Authenticator struct {
	tokens      *TokenService
	static      map[string]config.StaticUser
	revocations identity.RevocationStore
	logger      *slog.Logger
}

var _ identity.Authenticator = (*Authenticator)(nil)

// New creates an Authenticator. revocations may be nil, in which case
// revoked token ids are not checked.
func New(cfg config.AuthNConfig, revocations identity.RevocationStore) (*Authenticator, error) {
	tokens, err := NewTokenService(cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.RevocationCheck {
		revocations = nil
	}
	return &Authenticator{
		tokens:      tokens,
		static:      cfg.StaticTokens,
		revocations: revocations,
		logger:      slog.Default().With("component", "authn"),
	}, nil
}

// Tokens exposes the token service for issuing development tokens.
func (a *Authenticator) Tokens() *TokenService {
	return a.tokens
}

func (a *Authenticator) Authenticate(ctx context.Context, credentials string) (*identity.Identity, error) {
	if credentials == "" {
		return nil, ErrInvalidToken
	}

	if u, ok := a.static[credentials]; ok {
		return &identity.Identity{
			UserID:   u.UserID,
			Username: u.Username,
			Role:     roleOrDefault(u.Role),
		}, nil
	}

	claims, err := a.tokens.ValidateToken(credentials)
	if err != nil {
		return nil, err
	}

	if a.revocations != nil && claims.ID != "" {
		revoked, err := a.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			a.logger.Error("Failed to check token revocation", "jti", claims.ID, "error", err)
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	if !model.CheckID(claims.Subject) {
		a.logger.Warn("Rejected token with malformed subject", "jti", claims.ID)
		return nil, ErrInvalidToken
	}

	id := &identity.Identity{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     roleOrDefault(claims.Role),
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func roleOrDefault(role string) string {
	if role == "" {
		return model.RoleUser
	}
	return role
}
