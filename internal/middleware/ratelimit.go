package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openspot/openspot/internal/httpx"
)

// RealIP extracts the client's real IP address, preferring the
// X-Forwarded-For chain set by the reverse proxy and falling back to
// RemoteAddr.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type window struct {
	hits    int
	resetAt time.Time
}

// RateLimiter counts requests per key over fixed windows, in memory.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]window),
	}
}

// Allow records a hit for key and reports whether it stays within limit for
// the current window. A new window starts when the previous one has lapsed.
func (rl *RateLimiter) Allow(key string, limit int, d time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		rl.windows[key] = window{hits: 1, resetAt: now.Add(d)}
		return true
	}
	w.hits++
	rl.windows[key] = w
	return w.hits <= limit
}

// Cleanup drops windows that have lapsed. Called periodically so idle keys
// do not accumulate.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// RateLimit returns middleware that rejects requests exceeding limit per
// window, keyed by keyFunc. Rejected requests get a Retry-After hint.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, limit int, d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFunc(r), limit, d) {
				w.Header().Set("Retry-After", strconv.Itoa(int(d.Seconds())))
				httpx.WriteError(w, httpx.NewError(http.StatusTooManyRequests, "rate_limited", "too many requests, slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
