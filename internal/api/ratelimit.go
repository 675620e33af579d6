package api

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

// Per-client token bucket limiter keyed by remote IP. RATE_RPS and RATE_BURST
// tune it; RATE_RPS=0 disables limiting.

type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func newRateLimiterFromEnv() *rateLimiter {
	rps := 50.0
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil { rps = f }
	}
	burst := 100
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 { burst = n }
	}
	return &rateLimiter{clients: map[string]*rate.Limiter{}, rps: rate.Limit(rps), burst: burst}
}

func (rl *rateLimiter) limiterFor(addr string) *rate.Limiter {
	host, _, err := net.SplitHostPort(addr)
	if err != nil { host = addr }
	rl.mu.Lock()
	defer rl.mu.Unlock()
	lim, ok := rl.clients[host]
	if !ok {
		lim = rate.NewLimiter(rl.rps, rl.burst)
		rl.clients[host] = lim
	}
	return lim
}

// RateLimitMiddleware rejects clients exceeding the configured request rate.
func RateLimitMiddleware(next http.Handler) http.Handler {
	rl := newRateLimiterFromEnv()
	if rl.rps <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiterFor(r.RemoteAddr).Allow() {
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
