package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"learnhub-auth/internal/transport/http/i18n"
	resp "learnhub-auth/internal/transport/http/response"
)

// RateLimit is a global token bucket.
func RateLimit(rps rate.Limit, burst int, w *resp.Writer) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		w.Abort(c, http.StatusTooManyRequests, i18n.KeyTooManyRequests)
	}
}

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// IPLimiter keeps one token bucket per client IP. Idle buckets are dropped
// by Sweep.
type IPLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*ipBucket
}

func NewIPLimiter(rps rate.Limit, burst int) *IPLimiter {
	return &IPLimiter{rps: rps, burst: burst, buckets: make(map[string]*ipBucket)}
}

func (l *IPLimiter) Allow(ip string, now time.Time) bool {
	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// Sweep forgets buckets not used since before cutoff and reports how many.
func (l *IPLimiter) Sweep(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, ip)
			n++
		}
	}
	return n
}

// RateLimitPerIP throttles credential endpoints per caller.
func RateLimitPerIP(l *IPLimiter, w *resp.Writer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.Allow(c.ClientIP(), time.Now()) {
			c.Next()
			return
		}
		w.Abort(c, http.StatusTooManyRequests, i18n.KeyTooManyRequests)
	}
}
