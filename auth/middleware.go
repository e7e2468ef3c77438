package auth

import (
	"chat-live/domain"
	"chat-live/errors"
	"context"
	"net/http"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Middleware rejects requests without a valid bearer token and injects the
// user identity into the request context.
func Middleware(tokens *TokenManager, onError func(w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := TokenFromRequest(r)
			if tokenStr == "" {
				onError(w, errors.ErrMissingToken)
				return
			}
			claims, err := tokens.ValidateToken(tokenStr)
			if err != nil {
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserIDKey, claims.UserID)))
		})
	}
}

// UserIDFromContext returns the user injected by Middleware.
func UserIDFromContext(ctx context.Context) (domain.UserID, bool) {
	id, ok := ctx.Value(UserIDKey).(domain.UserID)
	return id, ok
}
