package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcoot/puzzlegame/internal/api/handler"
	"github.com/mcoot/puzzlegame/internal/api/middleware"
	"github.com/mcoot/puzzlegame/internal/api/response"
	shared "github.com/mcoot/puzzlegame/internal/middleware"
	"github.com/mcoot/puzzlegame/internal/services/auth"
	"github.com/mcoot/puzzlegame/internal/services/lifecycle"
	"github.com/mcoot/puzzlegame/internal/services/owner"
	"github.com/mcoot/puzzlegame/internal/web/sse"
)

// PathPrefix is where the JSON API is mounted
const PathPrefix = "/api/v1"

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger           *slog.Logger
	AuthService      *auth.Service
	LifecycleManager *lifecycle.Manager
	OwnerIssuer      *owner.Issuer
	HubManager       *sse.HubManager
	TracerProvider   trace.TracerProvider
	StorageName      string
}

// access controls which identity middleware wraps a route
type access int

const (
	public access = iota
	authenticated
	sessionOwner
)

type route struct {
	name    string
	method  string
	path    string
	access  access
	handler http.HandlerFunc
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	hubManager := cfg.HubManager
	if hubManager == nil {
		hubManager = sse.NewHubManager(cfg.Logger)
	}

	playerHandler := handler.NewPlayerHandler(cfg.AuthService)
	sessionHandler := handler.NewSessionHandler(cfg.LifecycleManager, hubManager, cfg.Logger)

	routes := []route{
		{"health", http.MethodGet, "/health", public, healthHandler(cfg.StorageName)},

		{"start-session", http.MethodPost, "/start/", sessionOwner, sessionHandler.Start},
		{"complete-session", http.MethodPost, "/complete/", sessionOwner, sessionHandler.Complete},
		{"session-detail", http.MethodGet, "/sessions/{id}/", sessionOwner, sessionHandler.Detail},
		{"session-events", http.MethodGet, "/sessions/{id}/events", sessionOwner, sessionHandler.Events},

		{"create-guest", http.MethodPost, "/players/guest", public, playerHandler.CreateGuest},
		{"register", http.MethodPost, "/players/register", public, playerHandler.Register},
		{"login", http.MethodPost, "/players/login", public, playerHandler.Login},
		{"logout", http.MethodPost, "/players/logout", authenticated, playerHandler.Logout},
		{"me", http.MethodGet, "/players/me", authenticated, playerHandler.GetMe},
	}

	authMiddleware := middleware.Auth(cfg.AuthService)
	optionalAuthMiddleware := middleware.OptionalAuth(cfg.AuthService)
	ownerMiddleware := shared.Owner(cfg.OwnerIssuer, cfg.Logger)

	r := mux.NewRouter()
	api := r.PathPrefix(PathPrefix).Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(shared.Tracing(cfg.TracerProvider))
	api.Use(middleware.Logging(cfg.Logger))

	for _, rt := range routes {
		var h http.Handler = rt.handler
		switch rt.access {
		case authenticated:
			h = authMiddleware(h)
		case sessionOwner:
			h = optionalAuthMiddleware(ownerMiddleware(h))
		}
		for i, path := range slashVariants(rt.path) {
			name := rt.name
			if i > 0 {
				name += "-alt"
			}
			api.Handle(path, h).Methods(rt.method).Name(name)
		}
	}

	return r
}

// slashVariants returns path and its trailing-slash counterpart
func slashVariants(path string) []string {
	if path == "/" {
		return []string{path}
	}
	if strings.HasSuffix(path, "/") {
		return []string{path, strings.TrimSuffix(path, "/")}
	}
	return []string{path, path + "/"}
}

func healthHandler(storageName string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, response.Health{Status: "ok", Storage: storageName})
	}
}
