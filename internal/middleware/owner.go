package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/services/owner"
)

type ownerContextKey struct{}

// Owner resolves the anonymous owner identity from the signed owner cookie.
// Requests without a valid cookie get a freshly minted owner and a Set-Cookie.
func Owner(issuer *owner.Issuer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(owner.CookieName); err == nil {
				if id, err := issuer.Parse(cookie.Value); err == nil {
					next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), id)))
					return
				}
			}

			id, token, err := issuer.Mint()
			if err != nil {
				logger.Error("failed to mint owner token", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     owner.CookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(issuer.TTL().Seconds()),
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
			logger.Debug("anonymous owner minted", slog.String("owner", string(id)))
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), id)))
		})
	}
}

// WithOwner stores an owner identity in ctx
func WithOwner(ctx context.Context, id model.OwnerID) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, id)
}

// GetOwner returns the owner resolved by the Owner middleware, or ""
func GetOwner(ctx context.Context) model.OwnerID {
	id, _ := ctx.Value(ownerContextKey{}).(model.OwnerID)
	return id
}
