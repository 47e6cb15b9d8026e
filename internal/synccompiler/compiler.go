package synccompiler

import (
	"regexp"

	"github.com/concordhq/concord/internal/model"
)

// bindExprPattern matches the two expr forms §4.3 rule 4 allows for a
// bind where-entry: the literal identifier uuid(), or a double-quoted
// string literal. Anything else is a compile-time diagnostic.
var bindExprPattern = regexp.MustCompile(`^(uuid\(\)|"[^"]*")$`)

// Compile validates parsed and, if it passes every rule in §4.3,
// returns a normalized *model.CompiledSync. Otherwise it returns the
// full list of diagnostics found (not just the first), so a config
// loader can report every problem in one pass.
func Compile(parsed ParsedSync) (*model.CompiledSync, []Diagnostic) {
	var diags []Diagnostic
	name := parsed.Name

	if name == "" {
		diags = append(diags, diag(name, "name", "sync name must not be empty"))
	}
	if len(parsed.When) == 0 {
		diags = append(diags, diag(name, "when", "when must not be empty"))
	}
	if len(parsed.Then) == 0 {
		diags = append(diags, diag(name, "then", "then must not be empty"))
	}

	bound := boundByWhen(parsed.When)

	for i, entry := range parsed.Where {
		switch entry.Kind {
		case model.WhereBind:
			if !bindExprPattern.MatchString(entry.Expr) {
				diags = append(diags, diag(name, "bind-expr",
					"where[%d] (as %q): expr %q is neither uuid() nor a string literal", i, entry.As, entry.Expr))
			}
			if entry.As == "" {
				diags = append(diags, diag(name, "bind-as", "where[%d]: bind entry has empty as", i))
			} else {
				bound[entry.As] = struct{}{}
			}

		case model.WhereQuery:
			for _, b := range entry.Bindings {
				if b.Kind == model.QueryBindingResult {
					bound[b.Var] = struct{}{}
					continue
				}
				if _, ok := bound[b.Var]; !ok {
					diags = append(diags, diag(name, "query-filter",
						"where[%d] (concept %s): filter variable %q is not bound by this point", i, entry.Concept, b.Var))
				}
			}

		case model.WhereFilter:
			// Predicate is an opaque function; its variable usage is not
			// statically checkable here.
		}
	}

	referenced := map[string]struct{}{}
	for _, p := range parsed.When {
		referenced[p.Concept] = struct{}{}
	}
	for _, w := range parsed.Where {
		if w.Kind == model.WhereQuery {
			referenced[w.Concept] = struct{}{}
		}
	}
	for _, t := range parsed.Then {
		referenced[t.Concept] = struct{}{}
		for fieldName, f := range t.Fields {
			if f.IsVariable {
				if _, ok := bound[f.Var]; !ok {
					diags = append(diags, diag(name, "then-unbound",
						"then %s/%s: field %q references unbound variable %q", t.Concept, t.Action, fieldName, f.Var))
				}
			}
		}
	}

	if len(diags) > 0 {
		return nil, diags
	}

	annotations := make(map[string]struct{}, len(parsed.Annotations))
	for _, a := range parsed.Annotations {
		annotations[a] = struct{}{}
	}

	return &model.CompiledSync{
		Name:               name,
		Annotations:        annotations,
		When:               parsed.When,
		Where:              parsed.Where,
		Then:               parsed.Then,
		ReferencedConcepts: referenced,
	}, nil
}

// boundByWhen computes the set of variables bound by the when patterns:
// every variable() field match across inputFields/outputFields (§4.3
// rule 2).
func boundByWhen(patterns []model.Pattern) map[string]struct{} {
	bound := make(map[string]struct{})
	for _, p := range patterns {
		for _, fm := range p.InputFields {
			if fm.Kind == model.MatchVariable {
				bound[fm.Var] = struct{}{}
			}
		}
		for _, fm := range p.OutputFields {
			if fm.Kind == model.MatchVariable {
				bound[fm.Var] = struct{}{}
			}
		}
	}
	return bound
}
