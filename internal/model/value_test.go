package model

import "testing"

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"strings equal", String("bob"), String("bob"), true},
		{"strings differ", String("bob"), String("alice"), false},
		{"numbers equal", Number(7), Number(7), true},
		{"numbers differ", Number(7), Number(8), false},
		{"kind mismatch", String("7"), Number(7), false},
		{"null equal", Null(), Null(), true},
		{"records equal", RecordOf(map[string]Value{"a": Number(1)}), RecordOf(map[string]Value{"a": Number(1)}), true},
		{"records differ by value", RecordOf(map[string]Value{"a": Number(1)}), RecordOf(map[string]Value{"a": Number(2)}), false},
		{"records differ by key count", RecordOf(map[string]Value{"a": Number(1)}), RecordOf(map[string]Value{"a": Number(1), "b": Number(2)}), false},
		{"lists equal", List([]Value{String("x"), Number(1)}), List([]Value{String("x"), Number(1)}), true},
		{"lists differ by order", List([]Value{String("x"), Number(1)}), List([]Value{Number(1), String("x")}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Fatalf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	v := RecordOf(map[string]Value{
		"name":   String("alice"),
		"age":    Number(30),
		"active": Bool(true),
		"tags":   List([]Value{String("a"), String("b")}),
	})

	data, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var out Value
	if err := out.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !v.Equal(out) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, v)
	}
}

func TestValueText(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{String("alice"), "alice"},
		{Number(7), "7"},
		{Number(2.5), "2.5"},
		{Bool(true), "true"},
		{Null(), ""},
	}
	for _, tt := range tests {
		if got := tt.v.Text(); got != tt.want {
			t.Fatalf("Text() = %q, want %q", got, tt.want)
		}
	}
}

func TestFieldsEqual(t *testing.T) {
	a := Fields{"user": String("alice")}
	b := Fields{"user": String("alice")}
	c := Fields{"user": String("bob")}

	if !a.Equal(b) {
		t.Fatal("expected equal fields to compare equal")
	}
	if a.Equal(c) {
		t.Fatal("expected differing fields to compare unequal")
	}
}
