package matcher

import (
	"testing"

	"github.com/concordhq/concord/internal/model"
)

func completion(id, concept, action string, output model.Fields) model.Record {
	return model.Record{ID: id, Kind: model.KindCompletion, Concept: concept, Action: action, Output: output}
}

func TestMatchSinglePatternBindsVariable(t *testing.T) {
	patterns := []model.Pattern{
		{
			Concept:      "app/orders",
			Action:       "create",
			OutputFields: map[string]model.FieldMatch{"orderId": model.Variable("orderId")},
		},
	}
	trigger := completion("c1", "app/orders", "create", model.Fields{"orderId": model.String("o1")})
	bindings := Match(patterns, []model.Record{trigger}, trigger)

	if len(bindings) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(bindings))
	}
	v, ok := bindings[0].Get("orderId")
	if !ok || v.Text() != "o1" {
		t.Fatalf("expected orderId=o1, got %+v", v)
	}
}

func TestMatchRequiresTriggerParticipation(t *testing.T) {
	patterns := []model.Pattern{
		{Concept: "app/orders", Action: "create"},
		{Concept: "app/payments", Action: "charge"},
	}
	old := completion("c0", "app/orders", "create", nil)
	trigger := completion("c1", "app/payments", "charge", nil)

	bindings := Match(patterns, []model.Record{old, trigger}, trigger)
	if len(bindings) != 1 {
		t.Fatalf("expected one binding including the trigger, got %d", len(bindings))
	}

	// If the trigger cannot match any pattern at all, no combination can
	// include it, so no binding survives even though history alone would
	// satisfy every pattern.
	unrelatedTrigger := completion("c2", "app/shipping", "dispatch", nil)
	bindings2 := Match(patterns, []model.Record{old, trigger}, unrelatedTrigger)
	if len(bindings2) != 0 {
		t.Fatalf("expected no bindings when trigger cannot appear in any slot, got %d", len(bindings2))
	}
}

func TestMatchConsistentVariableBindingAcrossPatterns(t *testing.T) {
	patterns := []model.Pattern{
		{Concept: "app/orders", Action: "create", OutputFields: map[string]model.FieldMatch{"orderId": model.Variable("id")}},
		{Concept: "app/payments", Action: "charge", InputFields: map[string]model.FieldMatch{"orderId": model.Variable("id")}},
	}

	orderA := completion("o1", "app/orders", "create", model.Fields{"orderId": model.String("A")})
	orderB := completion("o2", "app/orders", "create", model.Fields{"orderId": model.String("B")})
	chargeA := completion("p1", "app/payments", "charge", nil)
	chargeA.Input = model.Fields{"orderId": model.String("A")}

	bindings := Match(patterns, []model.Record{orderA, orderB, chargeA}, chargeA)
	if len(bindings) != 1 {
		t.Fatalf("expected exactly 1 consistent binding (order A with charge A), got %d: %+v", len(bindings), bindings)
	}
	matched := bindings[0].MatchedIDs()
	if len(matched) != 2 {
		t.Fatalf("expected 2 matched ids, got %v", matched)
	}
}

func TestMatchDeduplicatesBySortedMatchedIDs(t *testing.T) {
	patterns := []model.Pattern{
		{Concept: "app/orders", Action: "create"},
		{Concept: "app/orders", Action: "create"},
	}
	c1 := completion("c1", "app/orders", "create", nil)
	c2 := completion("c2", "app/orders", "create", nil)

	bindings := Match(patterns, []model.Record{c1, c2}, c1)
	seen := map[string]bool{}
	for _, b := range bindings {
		key := b.SortedMatchedIDKey()
		if seen[key] {
			t.Fatalf("duplicate binding for key %s", key)
		}
		seen[key] = true
	}
}

func TestMatchNoCandidatesForAPatternYieldsNoBindings(t *testing.T) {
	patterns := []model.Pattern{
		{Concept: "app/orders", Action: "create"},
		{Concept: "app/shipping", Action: "dispatch"},
	}
	trigger := completion("c1", "app/orders", "create", nil)
	bindings := Match(patterns, []model.Record{trigger}, trigger)
	if len(bindings) != 0 {
		t.Fatalf("expected no bindings since shipping/dispatch has no candidates, got %d", len(bindings))
	}
}
