package middleware

import (
	"net/http"
	"time"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/http/response"
	pkgmw "github.com/diagnosis/luxsuv-tours/pkg/middleware"
)

// RateLimit caps each client IP at requests per window. Rejections go
// through the error translator so they share the API envelope.
func RateLimit(counter pkgmw.Counter, requests int, window time.Duration, errs *response.Translator) func(http.Handler) http.Handler {
	rl := pkgmw.NewRateLimiter(counter, pkgmw.RateLimitConfig{
		Requests: requests,
		Window:   window,
		KeyFunc:  pkgmw.ClientIP,
		OnLimit: func(w http.ResponseWriter, r *http.Request) {
			errs.Write(w, r, domain.E(domain.KindRateLimited, "Too many requests from this IP, please try again in an hour!"))
		},
	})
	return rl.Middleware()
}
