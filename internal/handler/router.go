package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"chatbot-api/config"
	"chatbot-api/internal/middleware"
)

// NewRouter はルーターを生成する。
func NewRouter(h *MigrationHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	// ルート定義
	r.Get("/healthz", h.Health)
	r.Route("/v1/migrations", func(r chi.Router) {
		r.Get("/", h.ListMigrations)
	})

	if !cfg.OtelEnabled {
		return r
	}
	return otelhttp.NewHandler(r, cfg.OtelServiceName)
}
