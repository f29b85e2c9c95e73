/*
Package limiter provides per-IP rate limiting built on token buckets (rate.Limiter).

A background goroutine drops limiters whose bucket has refilled completely, so idle
clients do not accumulate in memory.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"voicerelay/internal/pkg/errs"
	"voicerelay/internal/pkg/logx"
	"voicerelay/internal/pkg/resp"
)

// DefaultCleanupInterval is how often idle limiters are swept.
const DefaultCleanupInterval = 3 * time.Minute

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu     sync.RWMutex
	limits map[string]*rate.Limiter

	r rate.Limit
	b int

	stopOnce sync.Once
	stop     chan struct{}
}

// NewIPRateLimiter creates a limiter allowing r events per second with burst b per IP, and
// starts the sweeper with the given interval.
func NewIPRateLimiter(r rate.Limit, b int, cleanupInterval time.Duration) *IPRateLimiter {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	i := &IPRateLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		stop:   make(chan struct{}),
	}

	go i.cleanUpVisitors(cleanupInterval)

	return i
}

// GetLimiter returns the limiter for ip, creating it on first use (double-checked locking).
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if exists {
		return limiter
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists = i.limits[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.limits[ip] = limiter
	}

	return limiter
}

// Allow reports whether a request from the given request's client IP may proceed.
func (i *IPRateLimiter) Allow(r *http.Request) bool {
	return i.GetLimiter(ClientIP(r)).Allow()
}

// Stop terminates the sweeper goroutine. Safe to call more than once.
func (i *IPRateLimiter) Stop() {
	i.stopOnce.Do(func() { close(i.stop) })
}

func (i *IPRateLimiter) cleanUpVisitors(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-i.stop:
			return
		case <-ticker.C:
			i.sweep(time.Now())
		}
	}
}

// sweep removes every limiter whose bucket is full at now.
func (i *IPRateLimiter) sweep(now time.Time) int {
	i.mu.Lock()
	removed := 0
	for ip, limiter := range i.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(i.limits, ip)
			removed++
		}
	}
	remaining := len(i.limits)
	i.mu.Unlock()

	if removed > 0 {
		logx.Debug("Rate limiter cleanup finished.", "removed", removed, "remaining", remaining)
	}

	return removed
}

// Middleware rejects requests over the limit with ErrRateLimitExceeded (HTTP 429).
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.Allow(r) {
			logx.Warn("Request rejected: Rate limit exceeded.", "path", r.URL.Path, "ip", logx.AnonymizeIP(ClientIP(r)))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the host part of r.RemoteAddr, falling back to "unknown_ip".
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	if ip == "" {
		ip = "unknown_ip"
	}

	return ip
}
