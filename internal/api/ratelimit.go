package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const rateWindow = time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client address: limit requests per
// window, refilled evenly across the window.
type rateLimiter struct {
	limit     int
	window    time.Duration
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

func (l *rateLimiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.clients[key]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit),
		}
		l.clients[key] = cl
	}
	cl.lastSeen = now
	allowed := cl.limiter.AllowN(now, 1)

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
		l.lastSweep = now
	}
	return allowed
}

// sweep drops clients idle for a whole window; their bucket would be full again.
func (l *rateLimiter) sweep(now time.Time) {
	for key, cl := range l.clients {
		if now.Sub(cl.lastSeen) > l.window {
			delete(l.clients, key)
		}
	}
}
