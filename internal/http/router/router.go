package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/health"
	"github.com/ticketdesk/auth-service/internal/http/handler"
	"github.com/ticketdesk/auth-service/internal/http/middleware"
	"github.com/ticketdesk/auth-service/internal/http/response"
)

type Dependencies struct {
	AuthHandler    *handler.AuthHandler
	SessionHandler *handler.SessionHandler
	Verifier       middleware.AccessVerifier

	CORSOrigins        []string
	APIRateLimitRPM    int
	AuthRateLimitRPM   int
	ForgotRateLimitRPM int

	// RateLimitBackend is the shared limiter backend; nil selects the
	// in-process fixed window.
	RateLimitBackend middleware.Limiter
	Idempotency      *middleware.IdempotencyStore

	Readiness      *health.ProbeRunner
	EnableOTelHTTP bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	backend := dep.RateLimitBackend
	if backend == nil {
		backend = middleware.NewLocalFixedWindowLimiter()
	}
	apiLimiter := middleware.NewRateLimiterWith(backend, dep.APIRateLimitRPM, time.Minute, middleware.FailOpen, "api", nil).Middleware()
	authLimiter := middleware.NewRateLimiterWith(backend, dep.AuthRateLimitRPM, time.Minute, middleware.FailClosed, "auth", nil).Middleware()
	forgotLimiter := middleware.NewRateLimiterWith(backend, dep.ForgotRateLimitRPM, time.Minute, middleware.FailClosed, "forgot", nil).Middleware()
	r.Use(apiLimiter)

	requireAuth := middleware.AuthMiddleware(dep.Verifier)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			registerChain := []func(http.Handler) http.Handler{authLimiter}
			if dep.Idempotency != nil {
				registerChain = append(registerChain, dep.Idempotency.Middleware("auth.register"))
			}
			r.With(registerChain...).Post("/register", dep.AuthHandler.Register)
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(authLimiter).Post("/refresh", dep.AuthHandler.Refresh)
			r.With(requireAuth).Post("/logout", dep.AuthHandler.Logout)
			r.With(requireAuth, authLimiter).Post("/password/change", dep.AuthHandler.ChangePassword)
			forgotChain := []func(http.Handler) http.Handler{forgotLimiter}
			if dep.Idempotency != nil {
				forgotChain = append(forgotChain, dep.Idempotency.Middleware("auth.password.forgot"))
			}
			r.With(forgotChain...).Post("/password/forgot", dep.AuthHandler.ForgotPassword)
			r.With(authLimiter).Post("/password/reset", dep.AuthHandler.ResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me/sessions", dep.SessionHandler.List)
			r.Delete("/me/sessions/{session_id}", dep.SessionHandler.Terminate)
			r.Get("/me/audit", dep.SessionHandler.OwnAuditTrail)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(domain.RoleManager))
			r.Get("/users/{user_id}/audit", dep.SessionHandler.UserAuditTrail)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
