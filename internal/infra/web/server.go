package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"finance-tracker/internal/config"
	"finance-tracker/internal/infra/redis"
)

type ServerDeps struct {
	Handlers    *Handlers
	RateLimiter *redis.RateLimiter
	Auth        config.AuthConfig
	RateLimit   config.RateLimitConfig
	Logger      *zerolog.Logger
}

// NewRouter assembles the full HTTP surface: public plan and webhook routes,
// a JWT-gated user group and an API-key-gated admin group.
func NewRouter(deps ServerDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h := deps.Handlers
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/payments/plans", h.ListPlans)
		r.Post("/payments/webhook/{provider}", h.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(UserMiddleware(deps.Auth.JWTSecret))
			r.Use(rateLimit(deps.RateLimiter, deps.RateLimit, deps.Logger))

			r.Post("/payments/orders", h.CreateOrder)
			r.Post("/payments/verify", h.VerifyPayment)
			r.Get("/payments", h.ListMyPayments)
			r.Get("/subscriptions/me", h.MySubscription)
			r.Post("/subscriptions/cancel", h.CancelSubscription)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminMiddleware(deps.Auth.AdminAPIKey))

			r.Get("/payments", h.AdminListPayments)
			r.Post("/payments/{id}/refund", h.AdminRefundPayment)
			r.Get("/plan-pricing", h.AdminListPricing)
			r.Post("/plan-pricing", h.AdminCreatePricing)
			r.Patch("/plan-pricing/{id}", h.AdminUpdatePricing)
			r.Get("/stats", h.AdminRevenueStats)
		})
	})

	return r
}

// NewServer wraps the router in an http.Server with sane timeouts.
func NewServer(cfg config.ServerConfig, router chi.Router) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// rateLimit applies a per-user fixed window on authenticated payment routes.
// Runs after UserMiddleware so the key is the user id, not the IP.
func rateLimit(rl *redis.RateLimiter, cfg config.RateLimitConfig, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl == nil || cfg.Requests <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := rl.Allow(r.Context(), userIDFrom(r.Context()), cfg.Requests, cfg.Window)
			if err != nil {
				logger.Warn().Err(err).Msg("rate limiter unavailable")
			}
			if !allowed {
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
