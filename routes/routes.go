package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/llm-orchestrator/app"
	"github.com/upb/llm-orchestrator/handlers"
	"github.com/upb/llm-orchestrator/internal/observability"
	"github.com/upb/llm-orchestrator/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	if deps.Config.Observability.MetricsEnabled {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(middleware.Timeout(deps.Config.Server.RequestTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var cache handlers.CacheStatsSource
	if deps.MappingCache != nil {
		cache = deps.MappingCache
	}
	health := handlers.NewHealthHandler(deps.DB, deps.Manager.Clients(), deps.Logger).
		WithStatus(deps.Config.Environment, deps.Config.Orchestrator.DefaultClient, cache)
	chat := handlers.NewChatHandler(deps.Manager, deps.Logger)
	metricsHandler := handlers.NewMetricsHandler(deps.Aggregator, deps.Logger)
	logs := handlers.NewLogsHandler(deps.ExecutionLogger, deps.Logger)
	mappings := handlers.NewProcessMappingHandler(deps.MappingService, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", health.HandleStatus)
		r.Post("/chat", chat.HandleChat)
		r.Post("/processes/{name}/chat", chat.HandleProcessChat)

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/", metricsHandler.HandleList)
			r.Get("/summary", metricsHandler.HandleSummary)
		})

		r.Route("/logs", func(r chi.Router) {
			r.Get("/", logs.HandleList)
			r.Delete("/", logs.HandlePrune)
			r.Get("/{id}", logs.HandleGet)
		})

		r.Route("/process-mappings", func(r chi.Router) {
			r.Get("/", mappings.HandleList)
			r.Post("/", mappings.HandleCreate)
			r.Get("/{id}", mappings.HandleGet)
			r.Put("/{id}", mappings.HandleUpdate)
			r.Delete("/{id}", mappings.HandleDelete)
			r.Post("/{id}/toggle", mappings.HandleToggle)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

// echoRequestID copies the request ID onto the response headers
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
