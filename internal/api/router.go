package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/hackgods/tenant-booking-engine/internal/appointment"
)

type RouterConfig struct {
	Service        *appointment.Service
	Logger         zerolog.Logger
	PostgresCheck  CheckFunc
	RedisCheck     CheckFunc
	MetricsHandler http.Handler
	// BookingRate and BookingBurst bound POST /bookings across all callers.
	// A zero rate disables the limiter.
	BookingRate  float64
	BookingBurst int
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PostgresCheck, cfg.RedisCheck, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	bookingLimit := func(next http.Handler) http.Handler { return next }
	if cfg.BookingRate > 0 {
		bookingLimit = RateLimitMiddleware(rate.NewLimiter(rate.Limit(cfg.BookingRate), cfg.BookingBurst))
	}

	r.Group(func(r chi.Router) {
		r.Use(IdentityMiddleware)

		r.Get("/slots", listSlotsHandler(cfg.Service))

		r.With(RequireRole(RoleClient, RoleOperator), bookingLimit).
			Post("/bookings", createBookingHandler(cfg.Service))

		r.Route("/appointments/{id}", func(r chi.Router) {
			r.Get("/", getAppointmentHandler(cfg.Service))
			r.With(RequireRole(RoleProfessional, RoleOperator)).
				Post("/confirm", confirmAppointmentHandler(cfg.Service))
			r.Post("/status", changeStatusHandler(cfg.Service))
		})

		r.Route("/blocks", func(r chi.Router) {
			r.Use(RequireRole(RoleProfessional, RoleOperator))
			r.Post("/", createBlockHandler(cfg.Service))

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(RoleOperator))
				r.Post("/{id}/deactivate", deactivateBlockHandler(cfg.Service))
				r.Post("/drafts/{id}/confirm", confirmBlockDraftHandler(cfg.Service))
				r.Post("/drafts/{id}/abort", abortBlockDraftHandler(cfg.Service))
			})
		})

		r.With(RequireRole(RoleOperator)).
			Put("/templates/{id}", saveTemplateHandler(cfg.Service))
	})

	return otelhttp.NewHandler(r, "booking-api")
}
