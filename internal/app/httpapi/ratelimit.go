package httpapi

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	apperr "github.com/Quorum-Labs/treasury_layer/internal/errors"
)

// maxLimiterEntries caps the per-key limiter map so identity churn cannot
// grow it without bound.
const maxLimiterEntries = 10000

// rateLimiter applies a per-caller token bucket. Authenticated requests are
// keyed on the member identity, anonymous ones on the remote address.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newRateLimiter(requestsPerSecond, burst int) *rateLimiter {
	if burst < 1 {
		burst = requestsPerSecond
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (rl *rateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.limiters) > maxLimiterEntries {
		rl.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := memberFrom(r)
		if key == "" {
			key = r.RemoteAddr
		}
		if !rl.limiter(key).Allow() {
			writeAppError(w, apperr.RateLimited(key))
			return
		}
		next.ServeHTTP(w, r)
	})
}
