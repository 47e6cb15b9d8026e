package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/concordhq/concord/internal/logging"
)

// ErrDuplicate is returned by Register when the URI is already
// registered (§4.2).
var ErrDuplicate = errors.New("registry: concept already registered")

// AvailabilityListener is notified whenever a concept's availability
// transitions, so the engine can re-evaluate the degraded set (§4.2,
// "the registry notifies the engine").
type AvailabilityListener func(uri string, available bool)

// Handle is a Concept Deployment Handle (§3).
type Handle struct {
	URI          string
	Transport    Transport
	Capabilities map[string]struct{}
	QueryMode    QueryMode

	mu        sync.RWMutex
	available bool
	br        *breaker
}

// Available reports whether uri is both heartbeat-healthy and has not
// had its circuit breaker trip open from repeated invoke/query
// failures — a concept can answer heartbeats while failing every real
// call, which the breaker catches independently (§4.2).
func (h *Handle) Available() bool {
	h.mu.RLock()
	avail := h.available
	h.mu.RUnlock()
	if !avail {
		return false
	}
	return h.br.currentState() != breakerOpen
}

func (h *Handle) setAvailable(v bool) (changed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	changed = h.available != v
	h.available = v
	return changed
}

// Registry maps concept URIs to deployment handles (§4.2). Exclusively
// owns deployment handles, per §3 "Ownership".
type Registry struct {
	mu        sync.RWMutex
	handles   map[string]*Handle
	listeners []AvailabilityListener
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// OnAvailabilityChange subscribes a listener invoked whenever any
// concept's availability transitions.
func (r *Registry) OnAvailabilityChange(fn AvailabilityListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Register adds a deployment handle for uri. Fails with ErrDuplicate if
// uri is already registered (§4.2).
func (r *Registry) Register(uri string, transport Transport, capabilities []string, queryMode QueryMode) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[uri]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicate, uri)
	}

	caps := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		caps[c] = struct{}{}
	}

	h := &Handle{
		URI:          uri,
		Capabilities: caps,
		QueryMode:    queryMode,
		available:    true,
		br:           newBreaker(DefaultBreakerConfig()),
	}
	h.Transport = &breakerTransport{inner: transport, br: h.br, reg: r, uri: uri}
	r.handles[uri] = h
	logging.Op().Info("concept registered", "uri", uri, "query_mode", queryMode)
	return uri, nil
}

// Deregister removes uri's handle. Idempotent (§4.2).
func (r *Registry) Deregister(uri string) {
	r.mu.Lock()
	h, exists := r.handles[uri]
	if exists {
		delete(r.handles, uri)
	}
	r.mu.Unlock()

	if exists {
		logging.Op().Info("concept deregistered", "uri", uri)
		r.notify(uri, false)
	}
}

// Resolve returns the transport for uri, or (nil, false) if the concept
// is unregistered or currently unavailable — callers must treat a
// missing transport and available=false identically (§4.2).
func (r *Registry) Resolve(uri string) (Transport, bool) {
	r.mu.RLock()
	h, exists := r.handles[uri]
	r.mu.RUnlock()
	if !exists || !h.Available() {
		return nil, false
	}
	return h.Transport, true
}

// Handle returns the deployment handle for uri, if registered.
func (r *Registry) Handle(uri string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[uri]
	return h, ok
}

// Heartbeat probes uri's transport health and updates its availability,
// notifying listeners on any transition (§4.2).
func (r *Registry) Heartbeat(ctx context.Context, uri string) bool {
	r.mu.RLock()
	h, exists := r.handles[uri]
	r.mu.RUnlock()
	if !exists {
		return false
	}

	health := h.Transport.Health(ctx)
	if h.setAvailable(health.Available) {
		logging.Op().Info("concept availability changed", "uri", uri, "available", health.Available)
		r.notify(uri, health.Available)
	}
	return health.Available
}

// HeartbeatAll probes every registered concept's health.
func (r *Registry) HeartbeatAll(ctx context.Context) {
	r.mu.RLock()
	uris := make([]string, 0, len(r.handles))
	for uri := range r.handles {
		uris = append(uris, uri)
	}
	r.mu.RUnlock()

	for _, uri := range uris {
		r.Heartbeat(ctx, uri)
	}
}

// URIs returns all registered concept URIs.
func (r *Registry) URIs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handles))
	for uri := range r.handles {
		out = append(out, uri)
	}
	return out
}

func (r *Registry) notify(uri string, available bool) {
	r.mu.RLock()
	listeners := make([]AvailabilityListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(uri, available)
	}
}
