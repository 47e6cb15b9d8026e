// Package model defines the data types shared by every layer of the
// synchronization engine: the tagged value representation for dynamic
// fields, action records, bindings, and compiled syncs.
package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindRecord
)

// Value is a closed sum type for action-record fields, literals, and
// bound variables. It gives the matcher and where evaluator a single
// equality definition ("field equals value") regardless of whether the
// underlying data came off the wire as JSON, a literal in a sync, or a
// query row.
type Value struct {
	kind   Kind
	str    string
	num    float64
	b      bool
	list   []Value
	record map[string]Value
}

func Null() Value                 { return Value{kind: KindNull} }
func String(s string) Value       { return Value{kind: KindString, str: s} }
func Number(n float64) Value      { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func List(vs []Value) Value       { return Value{kind: KindList, list: vs} }
func RecordOf(m map[string]Value) Value {
	return Value{kind: KindRecord, record: m}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) StringValue() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) NumberValue() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

func (v Value) BoolValue() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) ListValue() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

func (v Value) RecordValue() (map[string]Value, bool) {
	if v.kind != KindRecord {
		return nil, false
	}
	return v.record, true
}

// Equal implements the structural equality the matcher and where
// evaluator use for "field equals value" and binding-contradiction
// checks.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(v.record) != len(other.record) {
			return false
		}
		for k, lv := range v.record {
			rv, ok := other.record[k]
			if !ok || !lv.Equal(rv) {
				return false
			}
		}
		return true
	}
	return false
}

// Text renders a scalar Value as display/template text. Non-scalar
// values render as their JSON form.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindNumber:
		if v.num == float64(int64(v.num)) {
			return fmt.Sprintf("%d", int64(v.num))
		}
		return fmt.Sprintf("%g", v.num)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// MarshalJSON implements self-describing JSON encoding, matching the
// "self-describing object" on-the-wire requirement for durable records.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		return json.Marshal(v.list)
	case KindRecord:
		return json.Marshal(v.record)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts a decoded interface{} (as produced by encoding/json
// into an `any`) into a Value.
func FromAny(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case float64:
		return Number(t)
	case bool:
		return Bool(t)
	case []interface{}:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = FromAny(e)
		}
		return List(out)
	case map[string]interface{}:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = FromAny(e)
		}
		return RecordOf(out)
	default:
		return Null()
	}
}

// Fields is an ordered-by-caller mapping from field name to Value, used
// for action-record input/output payloads.
type Fields map[string]Value

// Equal compares two Fields maps for structural equality.
func (f Fields) Equal(other Fields) bool {
	if len(f) != len(other) {
		return false
	}
	for k, v := range f {
		ov, ok := other[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// SortedIDs returns ids sorted lexicographically, the canonical form
// used to key sync-firing edges (§3, "Sync Edge").
func SortedIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}
