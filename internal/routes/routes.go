package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/csm/internal/auth"
	"github.com/BradenHooton/csm/internal/handlers"
	"github.com/BradenHooton/csm/internal/middleware"
	"github.com/BradenHooton/csm/internal/models"
	pkghttp "github.com/BradenHooton/csm/pkg/http"
)

// Handlers groups every HTTP handler served by the agent
type Handlers struct {
	Users         *handlers.UserHandler
	Alerts        *handlers.AlertHandler
	Email         *handlers.EmailHandler
	SupportBundle *handlers.SupportBundleHandler
	Audit         *handlers.AuditHandler
	Auth          *handlers.AuthHandler
	Health        *handlers.HealthHandler
	Metrics       http.Handler
}

// Options holds the security dependencies of the route table
type Options struct {
	TokenManager   *auth.TokenManager
	Revocations    auth.RevocationStore
	Users          auth.UserLookup
	LoginRateLimit int
	IPConfig       *pkghttp.IPConfig
	Logger         *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, opts Options) {
	// Public routes - no authentication required
	router.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimitByIP(middleware.LoginRateLimit(opts.LoginRateLimit, opts.IPConfig))).
			Post("/login", h.Auth.Login)

		// Protected routes - authentication required
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(opts.TokenManager, opts.Revocations, opts.Logger))
			r.Use(auth.CurrentRoles(opts.Users, opts.Logger))

			// Any authenticated user
			r.Post("/logout", h.Auth.Logout)
			r.Get("/permissions", h.Auth.Permissions)
			r.Get("/csm/users", h.Users.ListUsers)
			r.Get("/csm/users/{user_id}", h.Users.GetUser)
			r.Get("/alerts", h.Alerts.ListAlerts)
			r.Get("/email/config", h.Email.ShowConfig)
			r.Get("/support_bundle", h.SupportBundle.List)
			r.Get("/auditlogs/show/{component}", h.Audit.Show)
			r.Get("/auditlogs/download/{component}", h.Audit.Download)

			// Admin and manage roles
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(models.WriteRoles...))
				r.Post("/csm/users", h.Users.CreateUser)
				r.Patch("/csm/users/{user_id}", h.Users.UpdateUser)
				r.Delete("/csm/users/{user_id}", h.Users.DeleteUser)
				r.Post("/alerts", h.Alerts.CreateAlert)
				r.Patch("/alerts/{alert_id}", h.Alerts.UpdateAlert)
				r.Put("/email/config", h.Email.Configure)
				r.Delete("/email/config", h.Email.Reset)
				r.Post("/email/subscribe", h.Email.Subscribe)
				r.Post("/email/unsubscribe", h.Email.Unsubscribe)
				r.Post("/email/test", h.Email.SendTest)
				r.Post("/support_bundle", h.SupportBundle.Create)
				r.Delete("/support_bundle/{bundle_id}", h.SupportBundle.Delete)
			})
		})
	})
}
