package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// CookieName is the session cookie set at login and signup.
const CookieName = "jwt"

var ErrRevoked = errors.New("token revoked")

// Authenticator resolves a raw token into claims, honouring revocations.
type Authenticator struct {
	tokens  *TokenManager
	revoked RevocationStore
}

// NewAuthenticator builds an Authenticator.
func NewAuthenticator(tokens *TokenManager, revoked RevocationStore) *Authenticator {
	return &Authenticator{tokens: tokens, revoked: revoked}
}

// Tokens exposes the underlying token manager.
func (a *Authenticator) Tokens() *TokenManager { return a.tokens }

// Issue starts a session for userID.
func (a *Authenticator) Issue(userID string) (string, *Claims, error) {
	return a.tokens.Issue(userID)
}

// Authenticate parses raw and rejects revoked tokens.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*Claims, error) {
	if raw == "" {
		return nil, errors.New("missing token")
	}
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

// Revoke invalidates the token identified by claims.
func (a *Authenticator) Revoke(ctx context.Context, claims *Claims) error {
	return a.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// TokenFromRequest looks for a session token in the cookie, then the
// Authorization header, then the token query parameter.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}
