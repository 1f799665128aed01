package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/api/docs"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/api/errsim"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/api/middleware"
	uploadapi "github.com/AutobookNft/UltraUploadManager-sub004/internal/api/upload"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/realtime"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(
	uploadHandler *uploadapi.Handler,
	errsimHandler *errsim.Handler,
	broker *realtime.Broker,
	simulationAllowed bool,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)   // Recover from panics
	r.Use(chimiddleware.RequestID)   // Add request ID
	r.Use(middleware.Logger(logger)) // Log requests
	r.Use(middleware.CORS)           // Handle CORS

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Swagger documentation endpoints
	docs.RegisterRoutes(r)

	// Real-time upload channel (server-sent events). Lives outside the
	// request timeout: the stream stays open until the client leaves.
	r.Get("/events/{channel}", broker.ServeHTTP)

	// Register routes
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(300 * time.Second)) // Large uploads need a generous timeout
		uploadapi.RegisterRoutes(r, uploadHandler)
		errsim.RegisterRoutes(r, errsimHandler, middleware.EnvironmentGate(simulationAllowed))
	})

	return r
}
