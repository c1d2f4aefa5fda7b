package web

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"

	sharedmw "github.com/mcoot/puzzlegame/internal/middleware"
	"github.com/mcoot/puzzlegame/internal/services/auth"
	"github.com/mcoot/puzzlegame/internal/services/catalog"
	"github.com/mcoot/puzzlegame/internal/services/lifecycle"
	"github.com/mcoot/puzzlegame/internal/services/owner"
	"github.com/mcoot/puzzlegame/internal/web/handler"
	"github.com/mcoot/puzzlegame/internal/web/middleware"
)

// RouterConfig holds configuration for the web router
type RouterConfig struct {
	Logger           *slog.Logger
	AuthService      *auth.Service
	LifecycleManager *lifecycle.Manager
	OwnerIssuer      *owner.Issuer
	Catalog          *catalog.Catalog
	TracerProvider   trace.TracerProvider
	StaticDir        string // Path to static files directory
}

type route struct {
	name    string
	method  string
	path    string
	handler http.HandlerFunc
}

func register(r *mux.Router, routes []route) {
	for _, rt := range routes {
		r.HandleFunc(rt.path, rt.handler).Methods(rt.method).Name(rt.name)
	}
}

// NewRouter creates a new web router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	puzzles := cfg.Catalog
	if puzzles == nil {
		puzzles = catalog.Default()
	}

	// Create handlers
	authHandler := handler.NewAuthHandler(cfg.AuthService)
	puzzleHandler := handler.NewPuzzleHandler(puzzles, cfg.LifecycleManager, cfg.Logger)

	// Apply global middleware to all routes
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(sharedmw.Tracing(cfg.TracerProvider))
	r.Use(middleware.Logging(cfg.Logger))
	r.NotFoundHandler = http.HandlerFunc(puzzleHandler.NotFound)

	// Static files
	if cfg.StaticDir != "" {
		staticHandler := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir)))
		r.PathPrefix("/static/").Handler(staticHandler)
	}

	r.Handle("/", http.RedirectHandler("/puzzle/", http.StatusSeeOther)).Methods(http.MethodGet).Name("root")

	// Pages resolve the viewer as the logged-in player or the anonymous owner cookie
	pages := r.NewRoute().Subrouter()
	pages.Use(middleware.Flash())
	pages.Use(middleware.OptionalAuth(cfg.AuthService))
	pages.Use(sharedmw.Owner(cfg.OwnerIssuer, cfg.Logger))
	register(pages, []route{
		{"puzzle", http.MethodGet, "/puzzle/", puzzleHandler.View},
		{"puzzle-start", http.MethodPost, "/puzzle/start", puzzleHandler.Start},
		{"puzzle-complete", http.MethodPost, "/puzzle/complete", puzzleHandler.Complete},
	})

	// Auth actions
	authRoutes := r.PathPrefix("/auth").Subrouter()
	authRoutes.Use(middleware.Flash())
	register(authRoutes, []route{
		{"auth-guest", http.MethodPost, "/guest", authHandler.CreateGuest},
		{"auth-logout", http.MethodPost, "/logout", authHandler.Logout},
	})

	return r
}
