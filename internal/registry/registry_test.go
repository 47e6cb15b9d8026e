package registry

import (
	"context"
	"testing"

	"github.com/concordhq/concord/internal/model"
)

type fakeHandler struct {
	healthy bool
	output  model.Fields
}

func (f *fakeHandler) Invoke(ctx context.Context, inv model.Invocation) (model.Completion, error) {
	return model.Completion{
		Concept: inv.Concept,
		Action:  inv.Action,
		Variant: "ok",
		Output:  f.output,
		Flow:    inv.Flow,
	}, nil
}

func (f *fakeHandler) Query(ctx context.Context, req QueryRequest) ([]Row, error) {
	return []Row{{"echo": model.String(req.Relation)}}, nil
}

func (f *fakeHandler) Healthy(ctx context.Context) bool { return f.healthy }

func TestRegistryRegisterResolveInvoke(t *testing.T) {
	r := New()
	handler := &fakeHandler{healthy: true, output: model.Fields{"id": model.String("u1")}}
	transport := NewInProcessTransport(handler, QueryModeLite)

	if _, err := r.Register("app/users", transport, []string{"create"}, QueryModeLite); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := r.Resolve("app/users")
	if !ok {
		t.Fatal("expected app/users to resolve")
	}

	comp, err := got.Invoke(context.Background(), model.Invocation{Concept: "app/users", Action: "create", Flow: "f1"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if comp.Variant != "ok" {
		t.Fatalf("expected variant ok, got %s", comp.Variant)
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := New()
	transport := NewInProcessTransport(&fakeHandler{healthy: true}, QueryModeLite)

	if _, err := r.Register("app/users", transport, nil, QueryModeLite); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := r.Register("app/users", transport, nil, QueryModeLite)
	if err == nil {
		t.Fatal("expected ErrDuplicate on second Register")
	}
}

func TestRegistryResolveUnavailableReturnsFalse(t *testing.T) {
	r := New()
	handler := &fakeHandler{healthy: false}
	transport := NewInProcessTransport(handler, QueryModeLite)
	if _, err := r.Register("app/orders", transport, nil, QueryModeLite); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r.Heartbeat(context.Background(), "app/orders")

	if _, ok := r.Resolve("app/orders"); ok {
		t.Fatal("expected Resolve to report unavailable concept as not resolvable")
	}
}

func TestRegistryHeartbeatNotifiesListeners(t *testing.T) {
	r := New()
	handler := &fakeHandler{healthy: true}
	transport := NewInProcessTransport(handler, QueryModeLite)
	if _, err := r.Register("app/orders", transport, nil, QueryModeLite); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var notified []bool
	r.OnAvailabilityChange(func(uri string, available bool) {
		notified = append(notified, available)
	})

	handler.healthy = false
	r.Heartbeat(context.Background(), "app/orders")

	if len(notified) != 1 || notified[0] != false {
		t.Fatalf("expected one false notification, got %+v", notified)
	}

	// No transition, no notification.
	r.Heartbeat(context.Background(), "app/orders")
	if len(notified) != 1 {
		t.Fatalf("expected no additional notification on stable health, got %+v", notified)
	}
}

func TestRegistryDeregisterIsIdempotent(t *testing.T) {
	r := New()
	transport := NewInProcessTransport(&fakeHandler{healthy: true}, QueryModeLite)
	if _, err := r.Register("app/users", transport, nil, QueryModeLite); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r.Deregister("app/users")
	r.Deregister("app/users")

	if _, ok := r.Resolve("app/users"); ok {
		t.Fatal("expected app/users to be gone after deregister")
	}
}
