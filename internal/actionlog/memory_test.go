package actionlog

import (
	"context"
	"testing"
	"time"

	"github.com/concordhq/concord/internal/model"
)

func TestMemoryLogAppendRoundTrip(t *testing.T) {
	l := NewMemoryLog(func() time.Time { return time.Unix(0, 0) })
	ctx := context.Background()

	c := model.Completion{
		ID: "c1", Concept: "app/users", Action: "create",
		Variant: "ok", Flow: "f1",
		Output: model.Fields{"user": model.String("alice")},
	}
	if _, err := l.Append(ctx, c, ""); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recs, err := l.CompletionsForFlow(ctx, "f1")
	if err != nil {
		t.Fatalf("CompletionsForFlow: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[len(recs)-1].ID != "c1" {
		t.Fatalf("expected completion to be last, got %+v", recs[len(recs)-1])
	}
}

func TestMemoryLogCompletionsForFlowOrderPreserved(t *testing.T) {
	l := NewMemoryLog(nil)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		_, _ = l.Append(ctx, model.Completion{ID: id, Flow: "f1", Concept: "x", Action: "y", Variant: "ok"}, "")
		_ = i
	}

	recs, _ := l.CompletionsForFlow(ctx, "f1")
	want := []string{"a", "b", "c"}
	for i, r := range recs {
		if r.ID != want[i] {
			t.Fatalf("order mismatch at %d: got %s want %s", i, r.ID, want[i])
		}
	}
}

func TestMemoryLogFiringGuard(t *testing.T) {
	l := NewMemoryLog(nil)
	ctx := context.Background()

	fired, err := l.HasFired(ctx, []string{"x", "y"}, "S1")
	if err != nil || fired {
		t.Fatalf("expected not fired yet, got fired=%v err=%v", fired, err)
	}

	if err := l.RecordSyncFiring(ctx, []string{"y", "x"}, "S1"); err != nil {
		t.Fatalf("RecordSyncFiring: %v", err)
	}

	// Order of the ids passed to HasFired must not matter (§4.1).
	fired, err = l.HasFired(ctx, []string{"x", "y"}, "S1")
	if err != nil || !fired {
		t.Fatalf("expected fired regardless of id order, got fired=%v err=%v", fired, err)
	}

	// Idempotent on repeated identical calls.
	if err := l.RecordSyncFiring(ctx, []string{"x", "y"}, "S1"); err != nil {
		t.Fatalf("RecordSyncFiring (repeat): %v", err)
	}
	fired, _ = l.HasFired(ctx, []string{"x", "y"}, "S1")
	if !fired {
		t.Fatal("expected still fired after idempotent repeat")
	}

	firedOther, _ := l.HasFired(ctx, []string{"x", "y"}, "S2")
	if firedOther {
		t.Fatal("expected a different sync name to not be marked fired")
	}
}

func TestMemoryLogFiringEdges(t *testing.T) {
	l := NewMemoryLog(nil)
	ctx := context.Background()

	edges, err := l.EdgesForTrigger(ctx, "c1")
	if err != nil {
		t.Fatalf("EdgesForTrigger: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected no edges before any firing, got %+v", edges)
	}

	if err := l.RecordFiringEdge(ctx, "c1", "S1", "inv1"); err != nil {
		t.Fatalf("RecordFiringEdge: %v", err)
	}
	if err := l.RecordFiringEdge(ctx, "c1", "S1", "inv2"); err != nil {
		t.Fatalf("RecordFiringEdge (second invocation): %v", err)
	}

	edges, err = l.EdgesForTrigger(ctx, "c1")
	if err != nil {
		t.Fatalf("EdgesForTrigger: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(edges))
	}
	if edges[0].InvocationID != "inv1" || edges[1].InvocationID != "inv2" {
		t.Fatalf("expected edges in record order, got %+v", edges)
	}
	for _, e := range edges {
		if e.SyncName != "S1" {
			t.Fatalf("expected sync name S1, got %+v", e)
		}
	}

	otherEdges, err := l.EdgesForTrigger(ctx, "c2")
	if err != nil {
		t.Fatalf("EdgesForTrigger for unrelated trigger: %v", err)
	}
	if len(otherEdges) != 0 {
		t.Fatalf("expected no edges for an unrelated trigger, got %+v", otherEdges)
	}
}
