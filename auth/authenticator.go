package auth

import (
	"chat-live/domain"
	"chat-live/errors"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// UserLookup resolves the display name of a token subject.
type UserLookup interface {
	GetUserByID(ctx context.Context, id domain.UserID) (domain.User, error)
}

// Authenticator validates the token presented when a WebSocket is opened.
type Authenticator struct {
	tokens *TokenManager
	users  UserLookup
}

func NewAuthenticator(tokens *TokenManager, users UserLookup) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// AuthenticateConnection returns the identity behind a token. The name comes
// from storage so that a renamed user is not announced with a stale name.
func (a *Authenticator) AuthenticateConnection(ctx context.Context, credentials string) (domain.Identity, error) {
	if credentials == "" {
		return domain.Identity{}, errors.ErrMissingToken
	}
	claims, err := a.tokens.ValidateToken(credentials)
	if err != nil {
		return domain.Identity{}, err
	}
	user, err := a.users.GetUserByID(ctx, claims.UserID)
	if stderrors.Is(err, errors.ErrUserNotFound) {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("lookup user %d: %w", claims.UserID, err)
	}
	return domain.Identity{ID: user.ID, Name: user.Name}, nil
}

// TokenFromRequest reads the token of the query string first, browsers cannot
// set headers on a WebSocket handshake, then the Authorization header.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
