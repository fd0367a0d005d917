package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxClients  = 10000
	clientIdle  = 10 * time.Minute
	sweepPeriod = 5 * time.Minute
)

type client struct {
	limiter *rate.Limiter
	seen    time.Time
}

// clientLimiter keeps one limiter per remote host. Idle hosts are swept on
// access, so no background goroutine outlives the server.
type clientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiter(requestsPerMinute int, now func() time.Time) *clientLimiter {
	return &clientLimiter{
		clients:   make(map[string]*client),
		limit:     rate.Limit(float64(requestsPerMinute) / 60),
		burst:     requestsPerMinute,
		lastSweep: now(),
		now:       now,
	}
}

func (cl *clientLimiter) allow(host string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	if now.Sub(cl.lastSweep) >= sweepPeriod {
		for h, c := range cl.clients {
			if now.Sub(c.seen) > clientIdle {
				delete(cl.clients, h)
			}
		}
		cl.lastSweep = now
	}

	c, ok := cl.clients[host]
	if !ok {
		// Refuse unseen hosts once the table is full.
		if len(cl.clients) >= maxClients {
			return false
		}
		c = &client{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[host] = c
	}
	c.seen = now
	return c.limiter.AllowN(now, 1)
}

// NewRateLimiter returns a middleware that allows requestsPerMinute per
// remote host, with bursts up to the same amount.
// A negative limit disables rate limiting.
func NewRateLimiter(requestsPerMinute int) func(http.Handler) http.Handler {
	return newRateLimiterWithClock(requestsPerMinute, time.Now)
}

func newRateLimiterWithClock(requestsPerMinute int, now func() time.Time) func(http.Handler) http.Handler {
	if requestsPerMinute < 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	cl := newClientLimiter(requestsPerMinute, now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cl.allow(remoteHost(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// remoteHost is RemoteAddr without the port. Forwarding headers are ignored;
// platform webhooks arrive directly.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
