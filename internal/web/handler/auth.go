package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/puzzlegame/internal/services/auth"
	"github.com/mcoot/puzzlegame/internal/web/middleware"
)

// maxDisplayNameLength caps names entered through the guest form
const maxDisplayNameLength = 20

// AuthHandler handles guest sign-in and logout
type AuthHandler struct {
	authService *auth.Service
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// CreateGuest handles guest player creation
func (h *AuthHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		middleware.SetFlash(w, "error", "Invalid form data")
		http.Redirect(w, r, "/puzzle/", http.StatusSeeOther)
		return
	}

	displayName := strings.TrimSpace(r.FormValue("display_name"))
	if displayName == "" {
		middleware.SetFlash(w, "error", "Display name is required")
		http.Redirect(w, r, backTo(r), http.StatusSeeOther)
		return
	}
	if len(displayName) > maxDisplayNameLength {
		displayName = displayName[:maxDisplayNameLength]
	}

	token, err := h.authService.CreateGuestPlayer(r.Context(), displayName)
	if err != nil {
		middleware.SetFlash(w, "error", "Failed to create guest player")
		http.Redirect(w, r, backTo(r), http.StatusSeeOther)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	middleware.SetFlash(w, "success", "Welcome, "+token.Player.DisplayName+"!")
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// Logout ends the player's login; sessions fall back to the anonymous owner
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.TokenCookieName); err == nil {
		h.authService.InvalidateToken(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	middleware.SetFlash(w, "info", "You have been logged out")
	http.Redirect(w, r, "/puzzle/", http.StatusSeeOther)
}

// backTo returns the local page named by the form's next field, else the puzzle list
func backTo(r *http.Request) string {
	next := r.FormValue("next")
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return "/puzzle/"
}
