// Package router assembles the HTTP surface: global middleware, the
// /api/v1 resources and the payment webhook.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/luxsuv-tours/internal/http/handlers"
	"github.com/diagnosis/luxsuv-tours/internal/http/middleware"
	"github.com/diagnosis/luxsuv-tours/internal/http/response"
	pkgmw "github.com/diagnosis/luxsuv-tours/pkg/middleware"
)

const (
	jsonBodyLimit = 10 << 10
	ServiceName   = "tours-api"
)

type Deps struct {
	Errors   *response.Translator
	Users    *handlers.UsersHandler
	Tours    *handlers.ToursHandler
	Reviews  *handlers.ReviewsHandler
	Bookings *handlers.BookingsHandler

	// Limiter counts requests per client; nil disables rate limiting.
	Limiter         pkgmw.Counter
	RateLimit       int
	RateLimitWindow time.Duration

	CORSOrigins    []string
	MaxUploadBytes int64
	// Dev stamps requestedAt on responses.
	Dev bool
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(pkgmw.RequestID)
	r.Use(pkgmw.ServiceName(ServiceName))
	r.Use(pkgmw.Logging)
	r.Use(d.Errors.Recover)
	r.Use(pkgmw.Health)
	r.Use(pkgmw.Metrics)
	r.Use(pkgmw.CORS(d.CORSOrigins))
	if d.Dev {
		r.Use(pkgmw.RequestedAt)
	}

	r.NotFound(d.Errors.NotFoundRoute)
	r.MethodNotAllowed(d.Errors.MethodNotAllowed)

	// The signature covers the raw body, so the webhook sits outside /api.
	r.Post("/webhook-checkout", d.Errors.Wrap(d.Bookings.Webhook))

	r.Route("/api", func(r chi.Router) {
		if d.Limiter != nil && d.RateLimit > 0 {
			r.Use(middleware.RateLimit(d.Limiter, d.RateLimit, d.RateLimitWindow, d.Errors))
		}
		r.Use(pkgmw.BodyLimit(jsonBodyLimit, d.MaxUploadBytes))

		r.Route("/v1", func(r chi.Router) {
			r.Mount("/tours", d.Tours.Routes())
			r.Mount("/users", d.Users.Routes())
			r.Mount("/reviews", d.Reviews.Routes())
			r.Mount("/bookings", d.Bookings.Routes())
		})
	})
	return r
}
