package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max requests per Window for a single key.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// ClientIP keys requests by X-Forwarded-For, X-Real-IP or the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SessionKey keys requests by cart session, read from the named cookie or
// header. Session IDs are chosen by clients, so only IDs for which known
// reports true get their own bucket. Everything else falls back to ClientIP,
// which keeps a client from minting fresh IDs to reset its limit.
func SessionKey(cookie, header string, known func(id string) bool) func(*http.Request) string {
	return func(r *http.Request) string {
		id := r.Header.Get(header)
		if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
			id = c.Value
		}
		if id != "" && known(id) {
			return "session:" + id
		}
		return "ip:" + ClientIP(r)
	}
}

// counter holds request counts of the current and the previous fixed window.
// The effective count weights the previous window by its overlap with the
// sliding window ending now.
type counter struct {
	start    time.Time
	current  float64
	previous float64
}

type limiter struct {
	max    int
	window time.Duration
	key    func(*http.Request) string
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

func newLimiter(cfg RateLimitConfig) *limiter {
	key := cfg.KeyFunc
	if key == nil {
		key = ClientIP
	}
	return &limiter{
		max:      cfg.Max,
		window:   cfg.Window,
		key:      key,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// take consumes one request for key. It reports whether the request is
// allowed, how many remain and when the current window ends.
func (l *limiter) take(key string, now time.Time) (ok bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, found := l.counters[key]
	if !found {
		c = &counter{start: now.Truncate(l.window)}
		l.counters[key] = c
	}
	if elapsed := now.Sub(c.start); elapsed >= l.window {
		if elapsed >= 2*l.window {
			c.previous = 0
		} else {
			c.previous = c.current
		}
		c.current = 0
		c.start = now.Truncate(l.window)
	}

	overlap := 1 - now.Sub(c.start).Seconds()/l.window.Seconds()
	used := c.previous*max(overlap, 0) + c.current
	reset = c.start.Add(l.window)
	if used >= float64(l.max) {
		return false, 0, reset
	}
	c.current++
	return true, max(int(float64(l.max)-used-1), 0), reset
}

// evict drops counters idle for two full windows.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, c := range l.counters {
		if now.Sub(c.start) >= 2*l.window {
			delete(l.counters, k)
		}
	}
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}

func (l *limiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			l.evict(t)
		}
	}
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	limit := strconv.Itoa(l.max)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.now()
		ok, remaining, reset := l.take(l.key(r), now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", limit)
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			wait := max(reset.Sub(now), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit enforces cfg.Max requests per sliding window and key. Rejected
// requests get 429 with Retry-After. Stale keys are never evicted; use
// RateLimitWithCleanup for long-running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit with a background eviction loop that
// stops with ctx.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.evictLoop(ctx)
	return l.middleware
}
