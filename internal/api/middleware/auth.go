package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/puzzlegame/internal/api/apierr"
	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/services/auth"
)

type contextKey string

const (
	playerContextKey contextKey = "player"
	tokenContextKey  contextKey = "token"
)

// Auth creates authentication middleware
func Auth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value := extractToken(r)
			if value == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			token, err := authService.ValidateToken(value)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withToken(r.Context(), token)))
		})
	}
}

// OptionalAuth attaches the player if a valid token is present but doesn't require one
func OptionalAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if value := extractToken(r); value != "" {
				if token, err := authService.ValidateToken(value); err == nil {
					r = r.WithContext(withToken(r.Context(), token))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withToken(ctx context.Context, token *auth.Token) context.Context {
	ctx = context.WithValue(ctx, tokenContextKey, token)
	return context.WithValue(ctx, playerContextKey, &token.Player)
}

// extractToken reads a Bearer header, falling back to the token cookie
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	if cookie, err := r.Cookie(auth.TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// GetPlayer returns the authenticated player from the request context
func GetPlayer(ctx context.Context) *model.Player {
	player, _ := ctx.Value(playerContextKey).(*model.Player)
	return player
}

// GetToken returns the login token from the request context
func GetToken(ctx context.Context) *auth.Token {
	token, _ := ctx.Value(tokenContextKey).(*auth.Token)
	return token
}

// MustGetPlayer returns the authenticated player or panics
func MustGetPlayer(ctx context.Context) *model.Player {
	player := GetPlayer(ctx)
	if player == nil {
		panic("no player in context - auth middleware not applied?")
	}
	return player
}
