package middleware

import (
	"context"
	"net/http"

	sharedmw "github.com/mcoot/puzzlegame/internal/middleware"
	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/services/auth"
)

type contextKey string

const (
	playerContextKey contextKey = "player"
)

// GetPlayer retrieves the logged-in player from the request context
// Returns nil for anonymous visitors
func GetPlayer(ctx context.Context) *model.Player {
	player, _ := ctx.Value(playerContextKey).(*model.Player)
	return player
}

// GetOwner returns the session owner for the request: the logged-in player
// if any, else the anonymous owner from the owner cookie
func GetOwner(ctx context.Context) model.OwnerID {
	if player := GetPlayer(ctx); player != nil {
		return player.OwnerID()
	}
	return sharedmw.GetOwner(ctx)
}

// OptionalAuth returns middleware that attempts authentication but doesn't require it
// Sets player in context if the token cookie is valid, nil otherwise
func OptionalAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			player := getPlayerFromCookie(r, authService)
			ctx := context.WithValue(r.Context(), playerContextKey, player)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getPlayerFromCookie(r *http.Request, authService *auth.Service) *model.Player {
	cookie, err := r.Cookie(auth.TokenCookieName)
	if err != nil {
		return nil
	}

	player, err := authService.GetPlayer(cookie.Value)
	if err != nil {
		return nil
	}

	return player
}
