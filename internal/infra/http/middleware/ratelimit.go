package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/armorlens/api/internal/config"
	"github.com/armorlens/api/pkg/apierror"
	"github.com/armorlens/api/pkg/logger"
)

// visitorIdleTTL is how long an idle client keeps its bucket.
const visitorIdleTTL = 3 * time.Minute

// RateLimiter implements a per-client token bucket limiter.
type RateLimiter struct {
	name     string
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	log      *logger.Logger
	done     chan struct{}
	stopped  chan struct{} // closed when the cleanup goroutine exits
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter. name labels its metrics and
// log lines.
func NewRateLimiter(name string, rps float64, burst int, cleanup time.Duration, log *logger.Logger) *RateLimiter {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	rl := &RateLimiter{
		name:     name,
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		cleanup:  cleanup,
		log:      log,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go rl.cleanupVisitors()

	return rl
}

// Stop stops the cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.done)
	})
	<-rl.stopped
}

// getVisitor retrieves or creates the limiter for a key.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(rl.rate, rl.burst)
		rl.visitors[key] = &visitor{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) visitorCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// cleanupVisitors removes idle visitor entries.
func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	defer close(rl.stopped)

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if time.Since(v.lastSeen) > visitorIdleTTL {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware returns the rate limiting middleware keyed by client IP.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(w, r, getClientIP(r)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allow consumes one token for key, sets the X-RateLimit headers and
// writes the 429 response when the bucket is empty.
func (rl *RateLimiter) allow(w http.ResponseWriter, r *http.Request, key string) bool {
	limiter := rl.getVisitor(key)

	// Sample before Allow consumes a token.
	tokens := limiter.Tokens()
	remaining := int(math.Max(0, math.Floor(tokens)-1))

	resetTime := time.Now()
	if missing := float64(rl.burst) - tokens; missing > 0 && rl.rate > 0 {
		resetTime = resetTime.Add(time.Duration(missing / float64(rl.rate) * float64(time.Second)))
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

	if limiter.Allow() {
		return true
	}

	RateLimitedTotal.WithLabelValues(rl.name).Inc()
	rl.log.Warn("rate limit exceeded",
		"limiter", rl.name,
		"key", key,
		"path", r.URL.Path,
		"request_id", GetRequestID(r.Context()),
	)

	retryAfter := 1
	if rl.rate > 0 {
		retryAfter = int(math.Ceil(1 / float64(rl.rate)))
	}
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	apierror.RateLimitExceeded().WriteJSONWithRequestID(w, GetRequestID(r.Context()))
	return false
}

// RateLimitWithStop creates the global per-IP rate limiting middleware and
// returns a stop function for graceful shutdown.
func RateLimitWithStop(cfg *config.RateLimitConfig, log *logger.Logger) (func(http.Handler) http.Handler, func()) {
	if !cfg.Enabled {
		return passthrough, func() {}
	}

	rl := NewRateLimiter("global", cfg.RequestsPerSec, cfg.Burst, cfg.CleanupInterval, log)
	return rl.Middleware(), rl.Stop
}

// LoadRateLimitWithStop creates the stricter per-IP limiter for dataset
// loads, which fetch from upstream and rebuild the collection.
func LoadRateLimitWithStop(cfg *config.RateLimitConfig, log *logger.Logger) (func(http.Handler) http.Handler, func()) {
	if !cfg.Enabled || cfg.LoadsPerMin <= 0 {
		return passthrough, func() {}
	}

	rl := NewRateLimiter("dataset_load", float64(cfg.LoadsPerMin)/60.0, cfg.LoadsPerMin, cfg.CleanupInterval, log)
	return rl.Middleware(), rl.Stop
}

func passthrough(next http.Handler) http.Handler {
	return next
}

// getClientIP extracts the client IP. chi's RealIP middleware has already
// folded X-Real-IP and X-Forwarded-For into RemoteAddr.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
