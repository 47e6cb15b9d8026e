package model

import "time"

// Kind of an action record.
type RecordKind string

const (
	KindInvocation RecordKind = "invocation"
	KindCompletion RecordKind = "completion"
)

// Record is the atomic unit of the action log (§3, "Action Record").
type Record struct {
	ID        string     `json:"id"`
	Kind      RecordKind `json:"kind"`
	Concept   string     `json:"concept"`
	Action    string     `json:"action"`
	Input     Fields     `json:"input,omitempty"`
	Variant   string     `json:"variant,omitempty"`
	Output    Fields     `json:"output,omitempty"`
	Flow      string     `json:"flow"`
	Parent    string     `json:"parent,omitempty"`
	Sync      string     `json:"sync,omitempty"`
	Timestamp time.Time  `json:"timestamp"`

	// Diagnostic carries a non-fatal emission warning, e.g. an
	// unresolved {{var}} template reference (§7, "Emission").
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Invocation is the caller-facing shape of a not-yet-completed action
// call, as returned by OnCompletion and consumed by transports.
type Invocation struct {
	ID      string `json:"id"`
	Concept string `json:"concept"`
	Action  string `json:"action"`
	Input   Fields `json:"input"`
	Flow    string `json:"flow"`
	Parent  string `json:"parent,omitempty"`
	Sync    string `json:"sync,omitempty"`

	// Diagnostic carries a non-fatal emission warning produced by the
	// then emitter, e.g. an unresolved {{var}} template reference
	// (§7, "Emission"). Empty for invocations submitted directly by a
	// caller rather than derived from a sync firing.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Completion is the caller-facing shape of a finished action call, fed
// into the engine via OnCompletion.
type Completion struct {
	ID      string `json:"id"`
	Concept string `json:"concept"`
	Action  string `json:"action"`
	Input   Fields `json:"input"`
	Variant string `json:"variant"`
	Output  Fields `json:"output"`
	Flow    string `json:"flow"`
}

// ToRecord renders an Invocation as the Record appended to the log.
func (inv Invocation) ToRecord(now time.Time) Record {
	return Record{
		ID:        inv.ID,
		Kind:      KindInvocation,
		Concept:   inv.Concept,
		Action:    inv.Action,
		Input:     inv.Input,
		Flow:      inv.Flow,
		Parent:    inv.Parent,
		Sync:      inv.Sync,
		Timestamp: now,
		Diagnostic: inv.Diagnostic,
	}
}

// ToRecord renders a Completion as the Record appended to the log. The
// invariant "a completion's id equals the id of the invocation it
// completes" is the caller's responsibility to uphold (§3).
func (c Completion) ToRecord(now time.Time, parent string) Record {
	return Record{
		ID:        c.ID,
		Kind:      KindCompletion,
		Concept:   c.Concept,
		Action:    c.Action,
		Input:     c.Input,
		Variant:   c.Variant,
		Output:    c.Output,
		Flow:      c.Flow,
		Parent:    parent,
		Timestamp: now,
	}
}
