// Package syncmanifest loads sync definitions from an on-disk JSON or
// YAML file into synccompiler.ParsedSync values and compiles them.
//
// Manifests are pure data: a `where` entry may bind a literal/uuid() or
// query a concept, but cannot carry a filter predicate (model.WhereFilter
// holds a func(Binding) bool, which has no declarative representation).
// A sync that needs a filter clause is registered programmatically by
// calling synccompiler.Compile directly with a handwritten ParsedSync;
// cmd/concordd's manifest-driven run/reload path only ever produces
// bind/query where-entries.
package syncmanifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/concordhq/concord/internal/model"
	"github.com/concordhq/concord/internal/synccompiler"
)

// FieldMatch is the on-disk form of model.FieldMatch. Exactly one of Var,
// Literal, or Wildcard must be set; toModel rejects an entry with none or
// more than one set.
type FieldMatch struct {
	Var      string      `json:"var,omitempty" yaml:"var,omitempty"`
	Literal  interface{} `json:"literal,omitempty" yaml:"literal,omitempty"`
	Wildcard bool        `json:"wildcard,omitempty" yaml:"wildcard,omitempty"`
}

func (f FieldMatch) toModel() (model.FieldMatch, error) {
	set := 0
	if f.Var != "" {
		set++
	}
	if f.Literal != nil {
		set++
	}
	if f.Wildcard {
		set++
	}
	switch {
	case set == 0:
		return model.FieldMatch{}, fmt.Errorf("field match has none of var/literal/wildcard set")
	case set > 1:
		return model.FieldMatch{}, fmt.Errorf("field match has more than one of var/literal/wildcard set")
	case f.Wildcard:
		return model.Wildcard(), nil
	case f.Var != "":
		return model.Variable(f.Var), nil
	default:
		return model.Literal(model.FromAny(f.Literal)), nil
	}
}

// Pattern is the on-disk form of model.Pattern.
type Pattern struct {
	Concept string                `json:"concept" yaml:"concept"`
	Action  string                `json:"action" yaml:"action"`
	Input   map[string]FieldMatch `json:"input,omitempty" yaml:"input,omitempty"`
	Output  map[string]FieldMatch `json:"output,omitempty" yaml:"output,omitempty"`
}

func (p Pattern) toModel() (model.Pattern, error) {
	input, err := fieldMatchMap(p.Input)
	if err != nil {
		return model.Pattern{}, fmt.Errorf("when %s/%s: input: %w", p.Concept, p.Action, err)
	}
	output, err := fieldMatchMap(p.Output)
	if err != nil {
		return model.Pattern{}, fmt.Errorf("when %s/%s: output: %w", p.Concept, p.Action, err)
	}
	return model.Pattern{
		Concept:      p.Concept,
		Action:       p.Action,
		InputFields:  input,
		OutputFields: output,
	}, nil
}

func fieldMatchMap(in map[string]FieldMatch) (map[string]model.FieldMatch, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]model.FieldMatch, len(in))
	for field, fm := range in {
		mfm, err := fm.toModel()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		out[field] = mfm
	}
	return out, nil
}

// BindEntry is the on-disk form of a model.WhereBind entry.
type BindEntry struct {
	As   string `json:"as" yaml:"as"`
	Expr string `json:"expr" yaml:"expr"`
}

// QueryBinding is the on-disk form of model.QueryBinding. Kind is
// "auto" (the default, resolved against the current binding) or
// "result" (received from the query response).
type QueryBinding struct {
	Field string `json:"field" yaml:"field"`
	Var   string `json:"var" yaml:"var"`
	Kind  string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

func (b QueryBinding) toModel() (model.QueryBinding, error) {
	kind := model.QueryBindingAuto
	switch strings.ToLower(b.Kind) {
	case "", "auto":
		kind = model.QueryBindingAuto
	case "result":
		kind = model.QueryBindingResult
	default:
		return model.QueryBinding{}, fmt.Errorf("query binding %q: unknown kind %q", b.Var, b.Kind)
	}
	return model.QueryBinding{Field: b.Field, Var: b.Var, Kind: kind}, nil
}

// QueryEntry is the on-disk form of a model.WhereQuery entry.
type QueryEntry struct {
	Concept  string         `json:"concept" yaml:"concept"`
	Relation string         `json:"relation,omitempty" yaml:"relation,omitempty"`
	Bindings []QueryBinding `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

// WhereEntry is the on-disk form of a model.WhereEntry. Exactly one of
// Bind or Query must be set.
type WhereEntry struct {
	Bind  *BindEntry  `json:"bind,omitempty" yaml:"bind,omitempty"`
	Query *QueryEntry `json:"query,omitempty" yaml:"query,omitempty"`
}

func (w WhereEntry) toModel() (model.WhereEntry, error) {
	switch {
	case w.Bind != nil && w.Query != nil:
		return model.WhereEntry{}, fmt.Errorf("where entry has both bind and query set")
	case w.Bind != nil:
		return model.WhereEntry{Kind: model.WhereBind, As: w.Bind.As, Expr: w.Bind.Expr}, nil
	case w.Query != nil:
		bindings := make([]model.QueryBinding, len(w.Query.Bindings))
		for i, b := range w.Query.Bindings {
			mb, err := b.toModel()
			if err != nil {
				return model.WhereEntry{}, fmt.Errorf("query %s: %w", w.Query.Concept, err)
			}
			bindings[i] = mb
		}
		return model.WhereEntry{
			Kind:     model.WhereQuery,
			Concept:  w.Query.Concept,
			Relation: w.Query.Relation,
			Bindings: bindings,
		}, nil
	default:
		return model.WhereEntry{}, fmt.Errorf("where entry has neither bind nor query set")
	}
}

// ThenField is the on-disk form of a model.ThenField. Var set means the
// field is a variable reference; otherwise Literal is used verbatim,
// including any {{var}} template markers.
type ThenField struct {
	Var     string `json:"var,omitempty" yaml:"var,omitempty"`
	Literal string `json:"literal,omitempty" yaml:"literal,omitempty"`
}

func (f ThenField) toModel() model.ThenField {
	if f.Var != "" {
		return model.ThenField{IsVariable: true, Var: f.Var}
	}
	return model.ThenField{Literal: f.Literal}
}

// ThenAction is the on-disk form of a model.ThenAction.
type ThenAction struct {
	Concept string               `json:"concept" yaml:"concept"`
	Action  string               `json:"action" yaml:"action"`
	Fields  map[string]ThenField `json:"fields,omitempty" yaml:"fields,omitempty"`
}

func (t ThenAction) toModel() model.ThenAction {
	fields := make(map[string]model.ThenField, len(t.Fields))
	for name, f := range t.Fields {
		fields[name] = f.toModel()
	}
	return model.ThenAction{Concept: t.Concept, Action: t.Action, Fields: fields}
}

// SyncDef is the on-disk form of one sync, decoded directly into a
// synccompiler.ParsedSync.
type SyncDef struct {
	Name        string       `json:"name" yaml:"name"`
	Annotations []string     `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	When        []Pattern    `json:"when" yaml:"when"`
	Where       []WhereEntry `json:"where,omitempty" yaml:"where,omitempty"`
	Then        []ThenAction `json:"then" yaml:"then"`
}

func (s SyncDef) toParsed() (synccompiler.ParsedSync, error) {
	when := make([]model.Pattern, len(s.When))
	for i, p := range s.When {
		mp, err := p.toModel()
		if err != nil {
			return synccompiler.ParsedSync{}, fmt.Errorf("sync %q: when[%d]: %w", s.Name, i, err)
		}
		when[i] = mp
	}

	where := make([]model.WhereEntry, len(s.Where))
	for i, w := range s.Where {
		mw, err := w.toModel()
		if err != nil {
			return synccompiler.ParsedSync{}, fmt.Errorf("sync %q: where[%d]: %w", s.Name, i, err)
		}
		where[i] = mw
	}

	then := make([]model.ThenAction, len(s.Then))
	for i, t := range s.Then {
		then[i] = t.toModel()
	}

	return synccompiler.ParsedSync{
		Name:        s.Name,
		Annotations: s.Annotations,
		When:        when,
		Where:       where,
		Then:        then,
	}, nil
}

// Manifest is the top-level on-disk shape: a flat list of sync
// definitions.
type Manifest struct {
	Syncs []SyncDef `json:"syncs" yaml:"syncs"`
}

// LoadFile reads and decodes a manifest from path, dispatching on file
// extension the same way config.LoadFromFile does.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("syncmanifest: read %s: %w", path, err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("syncmanifest: parse yaml %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("syncmanifest: parse json %s: %w", path, err)
		}
	}
	return &m, nil
}

// Compile converts every sync definition in m into a synccompiler.ParsedSync
// and runs it through synccompiler.Compile, collecting diagnostics across
// all syncs rather than stopping at the first failure. A sync definition
// that fails to decode (e.g. a malformed field match) is reported as a
// single "decode" diagnostic for that sync's name.
func Compile(m *Manifest) ([]*model.CompiledSync, []synccompiler.Diagnostic) {
	var compiled []*model.CompiledSync
	var diags []synccompiler.Diagnostic

	for _, def := range m.Syncs {
		parsed, err := def.toParsed()
		if err != nil {
			diags = append(diags, synccompiler.Diagnostic{
				Sync:    def.Name,
				Rule:    "decode",
				Message: err.Error(),
			})
			continue
		}

		cs, cdiags := synccompiler.Compile(parsed)
		if len(cdiags) > 0 {
			diags = append(diags, cdiags...)
			continue
		}
		compiled = append(compiled, cs)
	}

	return compiled, diags
}

// LoadAndCompile loads the manifest at path and compiles every sync in
// it. It returns every diagnostic found across every sync (not just the
// first), so callers can report all validation failures in one pass.
func LoadAndCompile(path string) ([]*model.CompiledSync, []synccompiler.Diagnostic, error) {
	m, err := LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	compiled, diags := Compile(m)
	return compiled, diags, nil
}
