package registry

import (
	"testing"
	"time"
)

func TestBreakerClosedAllowsRequests(t *testing.T) {
	b := newBreaker(BreakerConfig{
		ErrorPct:       50,
		WindowDuration: 10 * time.Second,
		OpenDuration:   5 * time.Second,
		HalfOpenProbes: 2,
	})

	if !b.allow() {
		t.Fatal("closed breaker should allow requests")
	}
	if b.currentState() != breakerClosed {
		t.Fatalf("expected closed, got %v", b.currentState())
	}
}

func TestBreakerTripsOnHighErrorRate(t *testing.T) {
	b := newBreaker(BreakerConfig{
		ErrorPct:       50,
		WindowDuration: 10 * time.Second,
		OpenDuration:   5 * time.Second,
		HalfOpenProbes: 1,
	})

	b.recordSuccess()
	b.recordFailure()
	tripped := b.recordFailure()

	if !tripped {
		t.Fatal("expected recordFailure to report the trip")
	}
	if b.currentState() != breakerOpen {
		t.Fatalf("expected open after high error rate, got %v", b.currentState())
	}
	if b.allow() {
		t.Fatal("open breaker should reject requests")
	}
}

func TestBreakerTransitionsToHalfOpen(t *testing.T) {
	b := newBreaker(BreakerConfig{
		ErrorPct:       50,
		WindowDuration: 10 * time.Second,
		OpenDuration:   10 * time.Millisecond,
		HalfOpenProbes: 1,
	})

	b.recordFailure()
	b.recordFailure()
	if b.currentState() != breakerOpen {
		t.Fatalf("expected open, got %v", b.currentState())
	}

	time.Sleep(20 * time.Millisecond)

	if !b.allow() {
		t.Fatal("should allow probe request in half-open state")
	}
}

func TestBreakerClosesAfterSuccessfulProbe(t *testing.T) {
	b := newBreaker(BreakerConfig{
		ErrorPct:       50,
		WindowDuration: 10 * time.Second,
		OpenDuration:   10 * time.Millisecond,
		HalfOpenProbes: 1,
	})

	b.recordFailure()
	b.recordFailure()
	time.Sleep(20 * time.Millisecond)

	b.allow()
	closed := b.recordSuccess()

	if !closed {
		t.Fatal("expected recordSuccess to report the close")
	}
	if b.currentState() != breakerClosed {
		t.Fatalf("expected closed after successful probe, got %v", b.currentState())
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	b := newBreaker(BreakerConfig{
		ErrorPct:       50,
		WindowDuration: 10 * time.Second,
		OpenDuration:   10 * time.Millisecond,
		HalfOpenProbes: 1,
	})

	b.recordFailure()
	b.recordFailure()
	time.Sleep(20 * time.Millisecond)

	b.allow()
	b.recordFailure()

	if b.currentState() != breakerOpen {
		t.Fatalf("expected open after failed probe, got %v", b.currentState())
	}
}

func TestHandleAvailableReflectsBreakerState(t *testing.T) {
	r := New()
	handler := &fakeHandler{healthy: true, output: nil}
	transport := NewInProcessTransport(handler, QueryModeLite)
	if _, err := r.Register("app/orders", transport, nil, QueryModeLite); err != nil {
		t.Fatalf("Register: %v", err)
	}

	h, ok := r.Handle("app/orders")
	if !ok {
		t.Fatal("expected handle to exist")
	}
	h.br.cfg.OpenDuration = time.Hour

	if !h.Available() {
		t.Fatal("expected handle available before any failures")
	}

	h.br.recordFailure()
	h.br.recordFailure()

	if h.Available() {
		t.Fatal("expected handle unavailable once breaker trips open")
	}
}
