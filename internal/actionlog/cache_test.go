package actionlog

import (
	"context"
	"testing"

	"github.com/concordhq/concord/internal/model"
)

func TestCachedLogPassThroughWithoutClient(t *testing.T) {
	inner := NewMemoryLog(nil)
	cached := NewCachedLog(inner, nil, 0)
	ctx := context.Background()

	c := model.Completion{ID: "c1", Flow: "f1", Concept: "app/users", Action: "create", Variant: "ok"}
	if _, err := cached.Append(ctx, c, ""); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recs, err := cached.CompletionsForFlow(ctx, "f1")
	if err != nil {
		t.Fatalf("CompletionsForFlow: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "c1" {
		t.Fatalf("expected pass-through read of the appended completion, got %+v", recs)
	}
}

func TestCachedLogFiringEdgePassThrough(t *testing.T) {
	inner := NewMemoryLog(nil)
	cached := NewCachedLog(inner, nil, 0)
	ctx := context.Background()

	if err := cached.RecordFiringEdge(ctx, "c1", "S1", "inv1"); err != nil {
		t.Fatalf("RecordFiringEdge: %v", err)
	}

	edges, err := cached.EdgesForTrigger(ctx, "c1")
	if err != nil {
		t.Fatalf("EdgesForTrigger: %v", err)
	}
	if len(edges) != 1 || edges[0].InvocationID != "inv1" {
		t.Fatalf("expected pass-through firing edge, got %+v", edges)
	}
}
