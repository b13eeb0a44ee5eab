package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/teilomillet/prompt2json/config"
	"github.com/teilomillet/prompt2json/errors"
	"github.com/teilomillet/prompt2json/server/metrics"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	cfg      config.RateLimitConfig
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewRateLimiter creates a limiter from cfg. m may be nil.
func NewRateLimiter(cfg config.RateLimitConfig, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		cfg:      cfg,
		metrics:  m,
		now:      time.Now,
	}
}

// Update applies a new configuration. Existing buckets are discarded when
// the rate or burst changes.
func (rl *RateLimiter) Update(cfg config.RateLimitConfig) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if cfg.RequestsPerMinute != rl.cfg.RequestsPerMinute || cfg.Burst != rl.cfg.Burst {
		rl.visitors = make(map[string]*visitor)
	}
	rl.cfg = cfg
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	if !rl.cfg.Enabled {
		rl.mu.Unlock()
		return true
	}
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.cfg.RequestsPerMinute)), rl.cfg.Burst)}
		rl.visitors[ip] = v
	}
	now := rl.now()
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Sweep forgets clients idle for longer than idle and returns how many were
// removed.
func (rl *RateLimiter) Sweep(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idle)
	removed := 0
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

// Handler rejects requests over the client's budget with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if rl.Allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if rl.metrics != nil {
			rl.metrics.RateLimitHits.WithLabelValues(ip).Inc()
		}
		rl.mu.Lock()
		limit := rl.cfg.RequestsPerMinute
		rl.mu.Unlock()
		errors.WriteError(w, errors.NewRateLimitError(GetRequestID(r.Context()), limit, time.Minute.String()))
	})
}

// clientIP strips the port from RemoteAddr. Forwarding headers are ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
