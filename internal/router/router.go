package router

import (
	"net/http"

	"consign-review-api/internal/handler"
	"consign-review-api/internal/metrics"
	"consign-review-api/internal/middleware"
	"consign-review-api/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	ReviewHandler  *handler.ReviewHandler
	AdminHandler   *handler.AdminHandler
	AuthHandler    *handler.AuthHandler
	AuthMiddleware func(http.Handler) http.Handler
	AllowedOrigins []string
}

// PublicPaths are served without authentication.
var PublicPaths = []string{
	"/api/v1/health",
	"/api/v1/ready",
	"/api/v1/auth/login",
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Token"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}
	r.Handle("/metrics", promhttp.Handler())

	// AUTHENTICATED routes (use Group to apply auth middleware only to these)
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			// Health check endpoints
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			// Auth endpoints
			if cfg.AuthHandler != nil {
				r.Route("/auth", func(r chi.Router) {
					r.Post("/login", cfg.AuthHandler.Login)
					r.Post("/logout", cfg.AuthHandler.Logout)
					r.Post("/refresh", cfg.AuthHandler.Refresh)
				})
			}

			// Review workflow endpoints
			if cfg.ReviewHandler != nil {
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(model.RoleAdmin, model.RoleStaff))

					r.Get("/categories", cfg.ReviewHandler.Categories)

					r.Post("/reviews", cfg.ReviewHandler.Open)
					r.Route("/reviews/{session_id}", func(r chi.Router) {
						r.Get("/", cfg.ReviewHandler.Get)
						r.Delete("/", cfg.ReviewHandler.Close)
						r.Put("/price", cfg.ReviewHandler.SetDealPrice)
						r.Post("/submit-price", cfg.ReviewHandler.SubmitPrice)
						r.Post("/close-modal", cfg.ReviewHandler.CloseModal)
						r.Put("/master-item", cfg.ReviewHandler.SelectMasterItem)
						r.Get("/master-items", cfg.ReviewHandler.ListMasterItems)
						r.Post("/master-items", cfg.ReviewHandler.CreateMasterItem)
						r.Post("/finalize", cfg.ReviewHandler.Finalize)
						r.Post("/negotiate", cfg.ReviewHandler.Negotiate)
					})
				})
			}

			// Admin endpoints
			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Use(middleware.RequireRole(model.RoleAdmin))
					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Get("/audit", cfg.AdminHandler.ListAudit)
				})
			}
		})
	})

	return r
}
