package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// ErrSessionLimit is returned when a new session would exceed the
// configured maximum number of live carts.
var ErrSessionLimit = errors.New("cart session limit reached")

// RegistryConfig controls session lifetime and capacity.
type RegistryConfig struct {
	// TTL is how long an untouched session survives. Zero disables expiry.
	TTL time.Duration
	// MaxSessions caps the number of live sessions. Zero means no limit.
	MaxSessions int
}

type session struct {
	mu   sync.Mutex
	cart *Cart

	// lastSeen is guarded by Registry.mu.
	lastSeen time.Time
}

// Registry owns one Cart per session and gives callers exclusive access to
// it. Carts live in memory only.
type Registry struct {
	cfg RegistryConfig
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Update runs fn with exclusive access to the cart of session id, creating
// an empty cart first when the session does not exist.
func (r *Registry) Update(id string, fn func(c *Cart) error) error {
	s, err := r.acquire(id, true)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	return fn(s.cart)
}

// View runs fn with exclusive access to the cart of session id. Unknown
// sessions are not created: fn sees an empty cart and View reports false.
func (r *Registry) View(id string, fn func(c *Cart)) bool {
	s, _ := r.acquire(id, false)
	if s == nil {
		fn(New())
		return false
	}
	defer s.mu.Unlock()
	fn(s.cart)
	return true
}

// acquire returns the locked session for id.
func (r *Registry) acquire(id string, create bool) (*session, error) {
	now := r.now()

	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		if !create {
			r.mu.Unlock()
			return nil, nil
		}
		if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
			r.mu.Unlock()
			return nil, ErrSessionLimit
		}
		s = &session{cart: New()}
		r.sessions[id] = s
	}
	s.lastSeen = now
	r.mu.Unlock()

	s.mu.Lock()
	return s, nil
}

// Has reports whether session id is live. It does not refresh the session.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep(now time.Time) int {
	if r.cfg.TTL <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) >= r.cfg.TTL {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}
