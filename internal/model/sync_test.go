package model

import "testing"

func TestBindingWithDoesNotMutateParent(t *testing.T) {
	b0 := NewBinding()
	b1 := b0.With("u", String("alice"))

	if _, ok := b0.Get("u"); ok {
		t.Fatal("expected parent binding to remain unbound")
	}
	v, ok := b1.Get("u")
	if !ok {
		t.Fatal("expected child binding to have u bound")
	}
	if s, _ := v.StringValue(); s != "alice" {
		t.Fatalf("got %q, want alice", s)
	}
}

func TestBindingSortedMatchedIDKeyOrderIndependent(t *testing.T) {
	b1 := NewBinding().WithMatchedID("b").WithMatchedID("a")
	b2 := NewBinding().WithMatchedID("a").WithMatchedID("b")

	if b1.SortedMatchedIDKey() != b2.SortedMatchedIDKey() {
		t.Fatalf("expected matched-id key to be order independent: %q vs %q",
			b1.SortedMatchedIDKey(), b2.SortedMatchedIDKey())
	}
}

func TestBindingSortedMatchedIDKeyDistinguishesSets(t *testing.T) {
	b1 := NewBinding().WithMatchedID("a").WithMatchedID("b")
	b2 := NewBinding().WithMatchedID("a").WithMatchedID("c")

	if b1.SortedMatchedIDKey() == b2.SortedMatchedIDKey() {
		t.Fatal("expected distinct matched-id sets to produce distinct keys")
	}
}
