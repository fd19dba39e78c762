package routes

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/cluster-policy-builder/app"
	"github.com/upb/cluster-policy-builder/handlers"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/middleware"
	"go.uber.org/zap"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(middleware.Metrics(deps.Metrics))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			middleware.SessionIDHeader, middleware.ForwardedTokenHeader,
		},
		ExposedHeaders:   []string{"Link", "X-Request-ID", middleware.SessionIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	health := newHealthHandler(deps, logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Metrics != nil && (deps.Config == nil || deps.Config.Observability.MetricsEnabled) {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	catalog := deps.PolicyCatalog
	if catalog == nil {
		catalog = corepolicy.DefaultCatalog()
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(logger).Handler)

		r.Get("/status", handlers.StatusHandler(status(deps, catalog)))

		attributes := handlers.NewAttributeHandler(catalog, logger)
		r.Route("/attributes", func(r chi.Router) {
			r.Get("/", attributes.HandleList)
			r.Get("/{name}", attributes.HandleGet)
		})

		if deps.Catalog != nil {
			options := handlers.NewCatalogHandler(deps.Catalog, logger)
			r.Route("/catalog", func(r chi.Router) {
				r.Post("/refresh", options.HandleRefresh)
				r.Get("/{source}", options.HandleOptions)
			})
		}

		if deps.Catalog != nil && deps.Workspace != nil && deps.Sessions != nil {
			policies := handlers.NewPolicyHandler(deps.Catalog, deps.Workspace, deps.Sessions, logger)
			r.Route("/policies", func(r chi.Router) {
				r.Get("/", policies.HandleListPolicies)
				r.Get("/{id}", policies.HandleGetPolicy)
				r.Get("/{id}/history", policies.HandlePolicyHistory)
			})
		}

		if deps.Sessions != nil {
			sessions := handlers.NewSessionHandler(deps.Sessions, logger)
			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessions.HandleGet)
				r.Post("/reset", sessions.HandleReset)
				r.Post("/family", sessions.HandleStartFamily)
				r.Post("/load/{id}", sessions.HandleLoad)
				r.Post("/clone", sessions.HandleClone)
				r.Post("/attribute", sessions.HandleSelectAttribute)
				r.Post("/mode", sessions.HandleSelectMode)
				r.Patch("/inputs", sessions.HandleStage)
				r.Post("/commit", sessions.HandleCommit)
				r.Put("/constraints", sessions.HandlePutConstraint)
				r.Delete("/constraints/{name}", sessions.HandleRemoveConstraint)
				r.Get("/preview", sessions.HandlePreview)
				r.Post("/submit", sessions.HandleSubmit)
				r.Get("/history", sessions.HandleHistory)
			})
		}
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}

// newHealthHandler keeps absent components as untyped nils so readiness
// reports them as not configured
func newHealthHandler(deps *app.Dependencies, logger *zap.Logger) *handlers.HealthHandler {
	var db *sql.DB
	if deps.DB != nil {
		db = deps.DB.DB
	}
	var workspace handlers.Pinger
	if deps.Workspace != nil {
		workspace = deps.Workspace
	}
	return handlers.NewHealthHandler(db, workspace, logger)
}

func status(deps *app.Dependencies, catalog *corepolicy.Catalog) handlers.StatusResponse {
	s := handlers.StatusResponse{Attributes: len(catalog.Names())}
	if deps.Config != nil {
		s.Environment = deps.Config.Environment
		s.DraftStore = deps.Config.Drafts.Store
	}
	if deps.Workspace != nil {
		s.Workspace = deps.Workspace.Host()
	}
	return s
}
