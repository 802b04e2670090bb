package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DeriveFunc computes a fresh snapshot.
type DeriveFunc func() (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures derivation registration.
type Option func(*config)

type config struct {
	ttl    time.Duration
	logged bool
}

// Volatile recomputes the snapshot on every request. This is the default.
func Volatile() Option {
	return func(c *config) {
		c.ttl = 0
	}
}

// Timed reuses a successful snapshot for ttl before recomputing it.
func Timed(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// Logged adds debug logging to the derivation.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type entry struct {
	derive DeriveFunc
	ttl    time.Duration
	attr   attribute.KeyValue

	mu       sync.Mutex
	value    any
	computed time.Time
	valid    bool
}

// Registry hands out snapshots by kind, recomputing them on demand.
type Registry struct {
	logger Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry

	// OTEL metrics
	derivations metric.Int64Counter
	failures    metric.Int64Counter
	duration    metric.Float64Histogram
}

// New creates a new Registry with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Registry, error) {
	r := &Registry{
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}

	m := meter()

	var err error

	r.derivations, err = m.Int64Counter(
		"registry.derivations",
		metric.WithDescription("Total snapshot derivations run"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating derivations counter: %w", err)
	}

	r.failures, err = m.Int64Counter(
		"registry.failures",
		metric.WithDescription("Total snapshot derivations that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	r.duration, err = m.Float64Histogram(
		"registry.duration",
		metric.WithDescription("Snapshot derivation duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return r, nil
}

// Register adds a derivation for the given kind with optional configuration.
// Registering a kind twice replaces the earlier derivation.
func (r *Registry) Register(kind string, derive DeriveFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logged {
		derive = r.withLogging(kind, derive)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[kind] = &entry{
		derive: derive,
		ttl:    cfg.ttl,
		attr:   attribute.String("kind", kind),
	}
}

// Has returns true if a derivation is registered for kind.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[kind]
	return ok
}

// Resolve returns a snapshot of the given kind. Failed derivations are never cached.
func (r *Registry) Resolve(kind string) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown kind: %s", kind)
	}

	if e.ttl <= 0 {
		return r.run(e)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.valid && r.now().Sub(e.computed) < e.ttl {
		return e.value, nil
	}

	v, err := r.run(e)
	if err != nil {
		e.valid = false
		return nil, err
	}
	e.value, e.computed, e.valid = v, r.now(), true
	return v, nil
}

// Invalidate drops any reused snapshot of kind.
func (r *Registry) Invalidate(kind string) {
	r.mu.RLock()
	e, ok := r.entries[kind]
	r.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.valid = false
	e.value = nil
	e.mu.Unlock()
}

func (r *Registry) run(e *entry) (any, error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(e.attr)

	start := time.Now()
	v, err := e.derive()
	r.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	r.derivations.Add(ctx, 1, attrs)
	if err != nil {
		r.failures.Add(ctx, 1, attrs)
		return nil, err
	}
	return v, nil
}

func (r *Registry) withLogging(kind string, derive DeriveFunc) DeriveFunc {
	return func() (any, error) {
		start := time.Now()
		r.logger.Debug("deriving snapshot", "kind", kind)

		v, err := derive()

		if err != nil {
			r.logger.Error("derivation failed", "kind", kind, "duration", time.Since(start), "error", err)
		} else {
			r.logger.Debug("derivation complete", "kind", kind, "duration", time.Since(start))
		}

		return v, err
	}
}

// Get resolves kind and asserts the snapshot type.
func Get[T any](r *Registry, kind string) (T, error) {
	var zero T
	v, err := r.Resolve(kind)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("kind %s: snapshot is %T, not %T", kind, v, zero)
	}
	return t, nil
}
