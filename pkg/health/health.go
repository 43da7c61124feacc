// Package health serves liveness and readiness probes.
//
// Checks run periodically in the background. A check flips to unhealthy
// after FailureThreshold consecutive failures and back to healthy after
// SuccessThreshold consecutive passes, so a single slow ping does not
// take the instance out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Thresholds controls how many consecutive results change a check's state.
type Thresholds struct {
	Failure int
	Success int
}

// DefaultThresholds mirror the Kubernetes probe defaults.
var DefaultThresholds = Thresholds{Failure: 3, Success: 1}

// probe is a registered check and its state. The streak counters are
// touched only by the goroutine that runs the probe; healthy and lastErr
// are read concurrently by the HTTP endpoints.
type probe struct {
	name       string
	timeout    time.Duration
	check      CheckFunc
	thresholds Thresholds

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails  int
	passes int
}

func newProbe(name string, timeout time.Duration, check CheckFunc, t Thresholds) *probe {
	p := &probe{name: name, timeout: timeout, check: check, thresholds: t}
	p.healthy.Store(true)
	return p
}

func (p *probe) err() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.lastErr.Store(&err)
	if err != nil {
		p.passes = 0
		p.fails++
		if p.fails >= p.thresholds.Failure {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	p.passes++
	if p.passes >= p.thresholds.Success {
		p.healthy.Store(true)
	}
}

func (p *probe) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Health holds the probes of one service.
type Health struct {
	ready atomic.Bool

	mu         sync.RWMutex
	thresholds Thresholds
	liveness   []*probe
	readiness  []*probe
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{thresholds: DefaultThresholds}
}

// SetThresholds changes the thresholds of checks added afterwards.
func (h *Health) SetThresholds(t Thresholds) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.thresholds = t
}

// AddLivenessCheck registers a check whose failure means the process
// should be restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check, h.thresholds))
}

// AddReadinessCheck registers a check whose failure means the instance
// should stop receiving traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check, h.thresholds))
}

func (h *Health) snapshot() (live, ready []*probe) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.liveness), slices.Clone(h.readiness)
}

// Run executes every check once per interval until ctx is done.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	live, ready := h.snapshot()
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range slices.Concat(live, ready) {
		g.Go(func() error {
			p.loop(ctx, interval)
			return nil
		})
	}
	return g.Wait()
}

// SetReady marks the service as (not) accepting traffic. Shutdown sets it
// to false before draining connections.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports SetReady state combined with readiness checks.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	_, ready := h.snapshot()
	return len(failures(ready)) == 0
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	live, _ := h.snapshot()
	write(w, failures(live))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	_, ready := h.snapshot()
	failed := failures(ready)
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	write(w, failed)
}

func failures(probes []*probe) map[string]string {
	out := make(map[string]string)
	for _, p := range probes {
		if p.healthy.Load() {
			continue
		}
		msg := "check is unhealthy"
		if err := p.err(); err != nil {
			msg = err.Error()
		}
		out[p.name] = msg
	}
	return out
}

// write renders {"status":"ok"} or {"status":"unhealthy","checks":{...}}.
func write(w http.ResponseWriter, failed map[string]string) {
	status, code := "ok", http.StatusOK
	if len(failed) > 0 {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		if len(failed) == 0 {
			return
		}
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		slices.Sort(names)
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failed[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
