// Package matcher implements the Matcher (§4.5): a pure, synchronous
// algorithm that finds every binding a sync's when patterns admit over
// a flow's completion history, given the completion that just
// triggered evaluation.
package matcher

import (
	"github.com/concordhq/concord/internal/model"
)

// Match returns every binding patterns admits over completions, such
// that the trigger completion participates in at least one pattern slot
// and no two returned bindings share the same matched-id set (§4.5).
func Match(patterns []model.Pattern, completions []model.Record, trigger model.Record) []model.Binding {
	if len(patterns) == 0 {
		return nil
	}

	candidateLists := make([][]model.Record, len(patterns))
	for i, p := range patterns {
		for _, c := range completions {
			if c.Kind != model.KindCompletion {
				continue
			}
			if c.Concept == p.Concept && c.Action == p.Action {
				candidateLists[i] = append(candidateLists[i], c)
			}
		}
		if len(candidateLists[i]) == 0 {
			return nil
		}
	}

	var results []model.Binding
	seen := make(map[string]struct{})

	var walk func(slot int, chosen []model.Record)
	walk = func(slot int, chosen []model.Record) {
		if slot == len(patterns) {
			if !includesTrigger(chosen, trigger) {
				return
			}
			binding, ok := buildBinding(patterns, chosen)
			if !ok {
				return
			}
			key := binding.SortedMatchedIDKey()
			if _, dup := seen[key]; dup {
				return
			}
			seen[key] = struct{}{}
			results = append(results, binding)
			return
		}
		for _, c := range candidateLists[slot] {
			walk(slot+1, append(chosen, c))
		}
	}
	walk(0, make([]model.Record, 0, len(patterns)))

	return results
}

func includesTrigger(chosen []model.Record, trigger model.Record) bool {
	for _, c := range chosen {
		if c.ID == trigger.ID {
			return true
		}
	}
	return false
}

// buildBinding attempts to construct one consistent binding from a
// single candidate-per-pattern assignment (§4.5 step 4).
func buildBinding(patterns []model.Pattern, chosen []model.Record) (model.Binding, bool) {
	b := model.NewBinding()
	for i, p := range patterns {
		rec := chosen[i]
		var ok bool
		b, ok = applyFieldMatches(b, p.InputFields, rec.Input)
		if !ok {
			return model.Binding{}, false
		}
		b, ok = applyFieldMatches(b, p.OutputFields, rec.Output)
		if !ok {
			return model.Binding{}, false
		}
		b = b.WithMatchedID(rec.ID)
	}
	return b, true
}

func applyFieldMatches(b model.Binding, matches map[string]model.FieldMatch, fields model.Fields) (model.Binding, bool) {
	for name, fm := range matches {
		switch fm.Kind {
		case model.MatchWildcard:
			continue
		case model.MatchLiteral:
			v, present := fields[name]
			if !present || !v.Equal(fm.Literal) {
				return b, false
			}
		case model.MatchVariable:
			v, present := fields[name]
			if !present {
				return b, false
			}
			if existing, bound := b.Get(fm.Var); bound {
				if !existing.Equal(v) {
					return b, false
				}
			} else {
				b = b.With(fm.Var, v)
			}
		}
	}
	return b, true
}
