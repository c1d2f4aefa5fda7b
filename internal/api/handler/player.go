package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/puzzlegame/internal/api/middleware"
	"github.com/mcoot/puzzlegame/internal/api/request"
	"github.com/mcoot/puzzlegame/internal/api/response"
	"github.com/mcoot/puzzlegame/internal/services/auth"
)

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	authService *auth.Service
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(authService *auth.Service) *PlayerHandler {
	return &PlayerHandler{
		authService: authService,
	}
}

// CreateGuest handles POST /api/v1/players/guest
func (h *PlayerHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	token, err := h.authService.CreateGuestPlayer(r.Context(), req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	setTokenCookie(w, r, token)
	response.JSON(w, http.StatusCreated, response.AuthResponseFromToken(token))
}

// Register handles POST /api/v1/players/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	switch {
	case req.Username == "":
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	case req.Password == "":
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	case req.DisplayName == "":
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	token, err := h.authService.RegisterPlayer(r.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	setTokenCookie(w, r, token)
	response.JSON(w, http.StatusCreated, response.AuthResponseFromToken(token))
}

// Login handles POST /api/v1/players/login
func (h *PlayerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, NewInvalidRequestError("username and password are required"))
		return
	}

	token, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	setTokenCookie(w, r, token)
	response.JSON(w, http.StatusOK, response.AuthResponseFromToken(token))
}

// Logout handles POST /api/v1/players/logout
func (h *PlayerHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.GetToken(r.Context()); token != nil {
		h.authService.InvalidateToken(token.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	response.NoContent(w)
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	response.JSON(w, http.StatusOK, response.PlayerFromModel(player))
}

func setTokenCookie(w http.ResponseWriter, r *http.Request, token *auth.Token) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
