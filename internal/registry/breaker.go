package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/concordhq/concord/internal/logging"
	"github.com/concordhq/concord/internal/model"
)

// breakerState is the circuit breaker's three-state model (Closed /
// Open / HalfOpen), sliding-window error rate in Closed, a cooldown in
// Open, and a bounded number of probes in HalfOpen before the breaker
// either closes or reopens.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// BreakerConfig thresholds the per-concept circuit breaker that feeds
// the degraded-sync set independently of heartbeat health (§4.2,
// "availability"): a concept can answer heartbeats while its
// invoke/query path is failing at a high rate, and the breaker catches
// that case the heartbeat alone cannot.
type BreakerConfig struct {
	ErrorPct       float64       // trips when the error percentage exceeds this (0-100)
	WindowDuration time.Duration // sliding window for the error rate
	OpenDuration   time.Duration // cooldown before a half-open probe
	HalfOpenProbes int           // probes required to close again
}

// DefaultBreakerConfig is applied to every handle a Registry creates
// unless the caller configures its own.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ErrorPct:       50,
		WindowDuration: 30 * time.Second,
		OpenDuration:   10 * time.Second,
		HalfOpenProbes: 1,
	}
}

const maxBreakerWindowEntries = 10000

type breaker struct {
	mu             sync.Mutex
	cfg            BreakerConfig
	state          breakerState
	successes      []time.Time
	failures       []time.Time
	openedAt       time.Time
	halfOpenProbes int
	halfOpenOK     int
}

func newBreaker(cfg BreakerConfig) *breaker {
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	return &breaker{cfg: cfg}
}

// allow reports whether a call should be let through, and advances the
// Open->HalfOpen transition when the cooldown has elapsed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if time.Since(b.openedAt) >= b.cfg.OpenDuration {
			b.state = breakerHalfOpen
			b.halfOpenProbes = 1
			b.halfOpenOK = 0
			return true
		}
		return false
	case breakerHalfOpen:
		if b.halfOpenProbes < b.cfg.HalfOpenProbes {
			b.halfOpenProbes++
			return true
		}
		return false
	default:
		return true
	}
}

// recordSuccess reports a successful call and returns true if the
// breaker just closed (Open/HalfOpen -> Closed transition).
func (b *breaker) recordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.state {
	case breakerClosed:
		b.successes = append(b.successes, now)
		b.trimWindow(now)
	case breakerHalfOpen:
		b.halfOpenOK++
		if b.halfOpenOK >= b.cfg.HalfOpenProbes {
			b.state = breakerClosed
			b.successes = b.successes[:0]
			b.failures = b.failures[:0]
			return true
		}
	}
	return false
}

// recordFailure reports a failed call and returns true if the breaker
// just tripped open.
func (b *breaker) recordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.state {
	case breakerClosed:
		b.failures = append(b.failures, now)
		b.trimWindow(now)
		if b.checkThreshold() {
			b.state = breakerOpen
			b.openedAt = now
			return true
		}
	case breakerHalfOpen:
		b.state = breakerOpen
		b.openedAt = now
		return true
	}
	return false
}

// currentState reports the breaker's state, advancing the
// Open->HalfOpen transition if the cooldown elapsed.
func (b *breaker) currentState() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerOpen && time.Since(b.openedAt) >= b.cfg.OpenDuration {
		b.state = breakerHalfOpen
		b.halfOpenProbes = 0
		b.halfOpenOK = 0
	}
	return b.state
}

func (b *breaker) trimWindow(now time.Time) {
	cutoff := now.Add(-b.cfg.WindowDuration)
	b.successes = trimBefore(b.successes, cutoff)
	b.failures = trimBefore(b.failures, cutoff)
	if len(b.successes) > maxBreakerWindowEntries {
		b.successes = b.successes[len(b.successes)-maxBreakerWindowEntries:]
	}
	if len(b.failures) > maxBreakerWindowEntries {
		b.failures = b.failures[len(b.failures)-maxBreakerWindowEntries:]
	}
}

func (b *breaker) checkThreshold() bool {
	total := len(b.successes) + len(b.failures)
	if total == 0 {
		return false
	}
	errorPct := float64(len(b.failures)) / float64(total) * 100
	return errorPct > b.cfg.ErrorPct
}

func trimBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	copy(times, times[i:])
	return times[:len(times)-i]
}

// breakerTransport decorates a Transport with the circuit breaker,
// tripping and restoring the owning Handle's availability as calls
// succeed or fail, independent of heartbeat probes.
type breakerTransport struct {
	inner Transport
	br    *breaker
	reg   *Registry
	uri   string
}

func (t *breakerTransport) QueryMode() QueryMode { return t.inner.QueryMode() }

func (t *breakerTransport) Health(ctx context.Context) Health {
	return t.inner.Health(ctx)
}

func (t *breakerTransport) Invoke(ctx context.Context, inv model.Invocation) (model.Completion, error) {
	if !t.br.allow() {
		return model.Completion{}, fmt.Errorf("registry: circuit breaker open for %s", t.uri)
	}
	comp, err := t.inner.Invoke(ctx, inv)
	t.record(err)
	return comp, err
}

func (t *breakerTransport) Query(ctx context.Context, req QueryRequest) ([]Row, error) {
	if !t.br.allow() {
		return nil, fmt.Errorf("registry: circuit breaker open for %s", t.uri)
	}
	rows, err := t.inner.Query(ctx, req)
	t.record(err)
	return rows, err
}

func (t *breakerTransport) record(err error) {
	if err != nil {
		if t.br.recordFailure() {
			logging.Op().Warn("concept circuit breaker opened", "uri", t.uri)
			t.reg.notify(t.uri, false)
		}
		return
	}
	if t.br.recordSuccess() {
		logging.Op().Info("concept circuit breaker closed", "uri", t.uri)
		t.reg.notify(t.uri, true)
	}
}
