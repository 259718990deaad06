package rest

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/payment-core/internal/transport"
	"github.com/frahmantamala/payment-core/internal/transport/middleware"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, gateways GatewayLister, logger *slog.Logger) {
	healthHandler := NewHealthHandler(transport.NewBaseHandler(logger), db, gateways)

	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)
	})
}
