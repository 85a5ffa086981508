// Package httpmiddleware carries the HTTP concerns that sit in front of every
// handler.
package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter enforces a per-client request budget over fixed one-minute
// windows, so a misbehaving capture loop cannot hammer the record store. State
// is per process, which is enough for single-instance deployments.
type RateLimiter struct {
	perMinute int
	now       func() time.Time

	mu      sync.Mutex
	windows map[string]*clientWindow
}

type clientWindow struct {
	start time.Time
	count int
}

// NewRateLimiter allows perMinute requests per client key. now may be nil for
// the wall clock.
func NewRateLimiter(perMinute int, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		perMinute: perMinute,
		now:       now,
		windows:   make(map[string]*clientWindow),
	}
}

// Gin returns the middleware, keyed by client IP.
func (l *RateLimiter) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Allow consumes one unit of key's budget in the current window.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= time.Minute {
		l.prune(now)
		w = &clientWindow{start: now}
		l.windows[key] = w
	}
	if w.count >= l.perMinute {
		return false
	}
	w.count++
	return true
}

// prune drops stale windows. Runs with the lock held, only at window
// rollover, keeping the map bounded by recently active clients.
func (l *RateLimiter) prune(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= time.Minute {
			delete(l.windows, key)
		}
	}
}
