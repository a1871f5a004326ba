package http

import (
	"github.com/fitlife/checkout-and-bookings/internal/idempotency"
	"github.com/fitlife/checkout-and-bookings/internal/observability"
	"github.com/fitlife/checkout-and-bookings/internal/rateLimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(RateLimitMiddleware(rl))
	r.Use(IdempotencyMiddleware(idemp))

	r.Post("/v1/checkout", h.Checkout)
	r.Get("/v1/orders/{number}", h.GetOrder)
	r.Post("/v1/payments/webhook", h.PaymentWebhook)
	r.Post("/v1/bookings", h.CreateBooking)
	r.Get("/v1/bookings", h.ListBookings)
	r.Post("/v1/bookings/{id}/cancel", h.CancelBooking)
	r.Post("/v1/bookings/{id}/attended", h.MarkAttended)
	r.Post("/v1/bookings/{id}/no-show", h.MarkNoShow)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
