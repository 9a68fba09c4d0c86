package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/luxsuv-tours/pkg/logger"
)

// Counter increments a fixed-window counter and returns the new value.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RateLimitConfig struct {
	Requests int           // Max requests per window
	Window   time.Duration // Time window duration
	KeyFunc  func(r *http.Request) string
	OnLimit  func(w http.ResponseWriter, r *http.Request)
}

type RateLimiter struct {
	counter Counter
	config  RateLimitConfig
	now     func() time.Time
}

func NewRateLimiter(counter Counter, config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientIP
	}
	if config.OnLimit == nil {
		config.OnLimit = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Too many requests from this IP, please try again in an hour!", http.StatusTooManyRequests)
		}
	}
	return &RateLimiter{counter: counter, config: config, now: time.Now}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.config.KeyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			count, ok := rl.hit(r.Context(), key)
			if ok {
				remaining := int64(rl.config.Requests) - count
				if remaining < 0 {
					remaining = 0
				}
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
				if count > int64(rl.config.Requests) {
					rl.config.OnLimit(w, r)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// hit counts the request. ok is false when the counter is unavailable, in
// which case the request is let through.
func (rl *RateLimiter) hit(ctx context.Context, key string) (int64, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	// Hash the key for privacy
	bucket := rl.now().UnixNano() / int64(rl.config.Window)
	hashedKey := fmt.Sprintf("ratelimit:%x:%d", sha256.Sum256([]byte(key)), bucket)

	count, err := rl.counter.Incr(ctx, hashedKey, rl.config.Window)
	if err != nil {
		logger.WarnContext(ctx, "rate limit counter unavailable, allowing request", "error", err)
		return 0, false
	}
	return count, true
}

// ClientIP extracts the real client IP from the request
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
