// Package thenemit implements the Then Emitter (§4.7): building
// invocations from a fully-extended binding set and a sync's then
// actions, interpolating {{var}} templates into literal fields.
package thenemit

import (
	"regexp"

	"github.com/google/uuid"

	"github.com/concordhq/concord/internal/model"
)

var templateVarPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Emit builds one invocation per (binding, then action) pair. flow and
// parent come from the triggering completion; sync names the firing
// sync. An invocation with an unresolved template variable carries a
// non-fatal Diagnostic (§7, "Emission").
func Emit(bindings []model.Binding, thenActions []model.ThenAction, flow, parent, syncName string) []model.Invocation {
	var out []model.Invocation
	for _, b := range bindings {
		for _, action := range thenActions {
			input, diagnostic := buildInput(action.Fields, b)
			out = append(out, model.Invocation{
				ID:         uuid.NewString(),
				Concept:    action.Concept,
				Action:     action.Action,
				Input:      input,
				Flow:       flow,
				Parent:     parent,
				Sync:       syncName,
				Diagnostic: diagnostic,
			})
		}
	}
	return out
}

func buildInput(fields map[string]model.ThenField, b model.Binding) (model.Fields, string) {
	input := make(model.Fields, len(fields))
	var diagnostic string

	for name, f := range fields {
		if f.IsVariable {
			if v, ok := b.Get(f.Var); ok {
				input[name] = v
			} else {
				// Compiler rejects unbound direct variable references
				// (§4.3 rule 3); reaching here would be a logic bug, but
				// degrade to the literal identifier rather than panic.
				input[name] = model.String(f.Var)
			}
			continue
		}

		resolved, unresolved := interpolate(f.Literal, b)
		input[name] = model.String(resolved)
		if unresolved != "" {
			diagnostic = appendDiagnostic(diagnostic, "unresolved template variable "+unresolved+" in field "+name)
		}
	}

	return input, diagnostic
}

// interpolate replaces every {{var}} marker in literal with its bound
// value's text. The first unresolved variable name encountered is
// returned for diagnostic purposes; its {{marker}} is left intact in
// the output text (§4.7, falling back to the original text).
func interpolate(literal string, b model.Binding) (resolved string, firstUnresolved string) {
	resolved = templateVarPattern.ReplaceAllStringFunc(literal, func(match string) string {
		sub := templateVarPattern.FindStringSubmatch(match)
		name := sub[1]
		if v, ok := b.Get(name); ok {
			return v.Text()
		}
		if firstUnresolved == "" {
			firstUnresolved = name
		}
		return match
	})
	return resolved, firstUnresolved
}

func appendDiagnostic(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "; " + next
}
