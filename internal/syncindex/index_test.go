package syncindex

import (
	"testing"

	"github.com/concordhq/concord/internal/model"
)

func sync(name, concept, action string) *model.CompiledSync {
	return &model.CompiledSync{
		Name: name,
		When: []model.Pattern{{Concept: concept, Action: action}},
	}
}

func TestBuildLookup(t *testing.T) {
	idx := Build([]*model.CompiledSync{
		sync("S1", "app/orders", "create"),
		sync("S2", "app/orders", "create"),
		sync("S3", "app/orders", "cancel"),
	})

	got := idx.Lookup("app/orders", "create")
	if len(got) != 2 {
		t.Fatalf("expected 2 syncs, got %d", len(got))
	}

	if len(idx.Lookup("app/orders", "cancel")) != 1 {
		t.Fatal("expected 1 sync for cancel")
	}
	if len(idx.Lookup("app/orders", "refund")) != 0 {
		t.Fatal("expected no syncs for an unreferenced action")
	}
}

func TestStoreSwapKeepsOldIndexValidForInFlightReaders(t *testing.T) {
	store := NewStore(Build([]*model.CompiledSync{sync("S1", "app/orders", "create")}))
	old := store.Current()

	store.Swap(Build([]*model.CompiledSync{sync("S2", "app/orders", "create")}))

	if len(old.Lookup("app/orders", "create")) != 1 || old.Lookup("app/orders", "create")[0].Name != "S1" {
		t.Fatal("expected captured old index reference to remain S1")
	}
	if store.Current().Lookup("app/orders", "create")[0].Name != "S2" {
		t.Fatal("expected current index to be S2 after swap")
	}
}
