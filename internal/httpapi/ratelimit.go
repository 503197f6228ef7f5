package httpapi

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/John-Robertt/loonsub/internal/model"
)

// rateLimiters keeps one token bucket per client IP. Entries are never
// evicted; the key space is bounded by the set of clients that actually
// reach the service.
type rateLimiters struct {
	mu       sync.Mutex
	byClient map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiters(rps float64, burst int) *rateLimiters {
	return &rateLimiters{
		byClient: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *rateLimiters) get(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.byClient[client]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.byClient[client] = limiter
	}
	return limiter
}

func withRateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	rl := newRateLimiters(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				client = r.RemoteAddr
			}
			if !rl.get(client).Allow() {
				WriteError(w, http.StatusTooManyRequests, model.AppError{
					Code:    "RATE_LIMITED",
					Message: "请求过于频繁，请稍后重试",
					Stage:   "validate_request",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
