package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/puzzlegame/internal/middleware"
)

// Logging creates request logging middleware tagged for the web interface
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger.With(slog.String("component", "web")))
}
