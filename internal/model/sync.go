package model

// MatchKind discriminates a pattern field's match mode.
type MatchKind int

const (
	MatchWildcard MatchKind = iota
	MatchLiteral
	MatchVariable
)

// FieldMatch is one field of a when-pattern: wildcard, a literal value,
// or a variable binding (§3, "Compiled Sync").
type FieldMatch struct {
	Kind    MatchKind
	Literal Value
	Var     string
}

func Wildcard() FieldMatch           { return FieldMatch{Kind: MatchWildcard} }
func Literal(v Value) FieldMatch     { return FieldMatch{Kind: MatchLiteral, Literal: v} }
func Variable(name string) FieldMatch { return FieldMatch{Kind: MatchVariable, Var: name} }

// Pattern is one `when` entry: match a completion by concept/action and
// field constraints on its input/output.
type Pattern struct {
	Concept      string
	Action       string
	InputFields  map[string]FieldMatch
	OutputFields map[string]FieldMatch
}

// WhereKind discriminates a where-entry.
type WhereKind int

const (
	WhereBind WhereKind = iota
	WhereQuery
	WhereFilter
)

// QueryBindingKind discriminates whether a query-entry binding supplies
// a filter value or receives a result value.
type QueryBindingKind int

const (
	QueryBindingAuto QueryBindingKind = iota // resolved against current binding at eval time
	QueryBindingResult
)

// QueryBinding names a single key in a query request/response mapping.
type QueryBinding struct {
	Field string // field name on the concept relation
	Var   string // variable name in the binding
	Kind  QueryBindingKind
}

// WhereEntry is one `where` clause entry: bind, query, or filter.
type WhereEntry struct {
	Kind WhereKind

	// Bind
	As   string
	Expr string

	// Query
	Concept  string
	Relation string // explicit relation name; empty means derive from Concept (§9)
	Bindings []QueryBinding

	// Filter
	Predicate func(Binding) bool
}

// ThenField is one field of a then-action's input: either a variable
// reference or a literal that may contain {{var}} templates.
type ThenField struct {
	IsVariable bool
	Var        string
	Literal    string
}

// ThenAction is one `then` entry: invoke a concept action with
// field-by-field resolved input.
type ThenAction struct {
	Concept string
	Action  string
	Fields  map[string]ThenField
}

// CompiledSync is a sync in normalized internal form (§3, "Compiled Sync").
// Immutable once installed; shared by reference between the index and
// any in-flight match.
type CompiledSync struct {
	Name        string
	Annotations map[string]struct{}
	When        []Pattern
	Where       []WhereEntry
	Then        []ThenAction

	// ReferencedConcepts is the set of concept URIs this sync's `when`
	// patterns, `where` queries, and `then` actions touch; used by the engine to compute
	// the degraded set when a concept's availability changes.
	ReferencedConcepts map[string]struct{}
}

func (s *CompiledSync) HasAnnotation(a string) bool {
	_, ok := s.Annotations[a]
	return ok
}

// reservedMatchedIDsKey is the Binding key carrying the ordered list of
// matched completion ids (§3, "Binding").
const reservedMatchedIDsKey = "__matched_ids"

// Binding is a mapping from variable name to value, augmented with the
// reserved matched-completion-ids list.
type Binding struct {
	vars       map[string]Value
	matchedIDs []string
}

// NewBinding creates an empty binding.
func NewBinding() Binding {
	return Binding{vars: make(map[string]Value)}
}

// Clone returns an independent copy so branching (query result fan-out)
// never aliases a parent binding's map.
func (b Binding) Clone() Binding {
	vars := make(map[string]Value, len(b.vars))
	for k, v := range b.vars {
		vars[k] = v
	}
	ids := make([]string, len(b.matchedIDs))
	copy(ids, b.matchedIDs)
	return Binding{vars: vars, matchedIDs: ids}
}

func (b Binding) Get(name string) (Value, bool) {
	v, ok := b.vars[name]
	return v, ok
}

// With returns a new binding with name bound to v. Does not mutate b.
func (b Binding) With(name string, v Value) Binding {
	nb := b.Clone()
	nb.vars[name] = v
	return nb
}

// WithMatchedID appends id to the matched-completion-ids list, returning
// a new binding. Order follows pattern order per §4.5.
func (b Binding) WithMatchedID(id string) Binding {
	nb := b.Clone()
	nb.matchedIDs = append(nb.matchedIDs, id)
	return nb
}

func (b Binding) MatchedIDs() []string {
	out := make([]string, len(b.matchedIDs))
	copy(out, b.matchedIDs)
	return out
}

// SortedMatchedIDKey returns the canonical firing-guard key for this
// binding: the sorted matched-completion-ids, joined.
func (b Binding) SortedMatchedIDKey() string {
	sorted := SortedIDs(b.matchedIDs)
	out := ""
	for i, id := range sorted {
		if i > 0 {
			out += "\x1f"
		}
		out += id
	}
	return out
}

// Vars returns the live variable map. Callers must not mutate it.
func (b Binding) Vars() map[string]Value {
	return b.vars
}
