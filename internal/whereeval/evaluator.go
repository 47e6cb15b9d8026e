// Package whereeval implements the Where Evaluator (§4.6): the
// sequential bind/query/filter pipeline that extends a matcher's
// bindings before the Then Emitter builds invocations from them.
package whereeval

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/concordhq/concord/internal/logging"
	"github.com/concordhq/concord/internal/metrics"
	"github.com/concordhq/concord/internal/model"
	"github.com/concordhq/concord/internal/registry"
)

// Resolver is the subset of *registry.Registry the evaluator needs,
// kept narrow so tests can supply a fake without building a whole
// registry.
type Resolver interface {
	Resolve(uri string) (registry.Transport, bool)
}

// Evaluate runs entries in order over bindings, returning the fully
// extended binding set. A query against an unavailable concept drops
// the binding rather than erroring (§4.6, "Failure semantics").
func Evaluate(ctx context.Context, entries []model.WhereEntry, bindings []model.Binding, resolver Resolver) []model.Binding {
	current := bindings
	for _, entry := range entries {
		switch entry.Kind {
		case model.WhereBind:
			current = applyBind(entry, current)
		case model.WhereQuery:
			current = applyQuery(ctx, entry, current, resolver)
		case model.WhereFilter:
			current = applyFilter(entry, current)
		}
		if len(current) == 0 {
			return current
		}
	}
	return current
}

func applyBind(entry model.WhereEntry, in []model.Binding) []model.Binding {
	out := make([]model.Binding, 0, len(in))
	for _, b := range in {
		out = append(out, b.With(entry.As, evalBindExpr(entry.Expr)))
	}
	return out
}

// evalBindExpr evaluates a compiler-validated bind expression: either
// the literal identifier uuid() or a double-quoted string literal
// (§4.6, "Bind").
func evalBindExpr(expr string) model.Value {
	if expr == "uuid()" {
		return model.String(uuid.NewString())
	}
	if len(expr) >= 2 && strings.HasPrefix(expr, `"`) && strings.HasSuffix(expr, `"`) {
		return model.String(expr[1 : len(expr)-1])
	}
	return model.String(expr)
}

func applyQuery(ctx context.Context, entry model.WhereEntry, in []model.Binding, resolver Resolver) []model.Binding {
	transport, ok := resolver.Resolve(entry.Concept)
	if !ok {
		logging.Op().Warn("where query dropped: concept unavailable", "concept", entry.Concept)
		return nil
	}

	relation := entry.Relation
	if relation == "" {
		relation = deriveRelation(entry.Concept)
	}

	var out []model.Binding
	for _, b := range in {
		args := make(map[string]model.Value)
		var resultVars []string
		for _, bd := range entry.Bindings {
			if v, bound := b.Get(bd.Var); bound {
				args[bd.Field] = v
			} else {
				resultVars = append(resultVars, bd.Var)
			}
		}

		queryStart := time.Now()
		rows, err := transport.Query(ctx, registry.QueryRequest{Relation: relation, Args: args})
		metrics.ObserveWhereQueryDuration(entry.Concept, time.Since(queryStart))
		if err != nil {
			metrics.RecordWhereQueryFailure(entry.Concept)
			logging.Op().Warn("where query failed, dropping binding", "concept", entry.Concept, "relation", relation, "error", err)
			continue
		}

		for _, row := range rows {
			extended, ok := extendFromRow(b, entry.Bindings, resultVars, row)
			if ok {
				out = append(out, extended)
			}
		}
	}
	return out
}

func extendFromRow(b model.Binding, bindings []model.QueryBinding, resultVars []string, row registry.Row) (model.Binding, bool) {
	nb := b
	for _, varName := range resultVars {
		field := fieldForVar(bindings, varName)
		v, present := row[field]
		if !present {
			continue
		}
		if existing, bound := nb.Get(varName); bound {
			if !existing.Equal(v) {
				return model.Binding{}, false
			}
			continue
		}
		nb = nb.With(varName, v)
	}
	return nb, true
}

func fieldForVar(bindings []model.QueryBinding, varName string) string {
	for _, bd := range bindings {
		if bd.Var == varName {
			return bd.Field
		}
	}
	return varName
}

// deriveRelation derives the default relation name from a concept URI's
// final path segment, lowercased (§4.6, "legacy convention").
func deriveRelation(conceptURI string) string {
	parts := strings.Split(conceptURI, "/")
	last := parts[len(parts)-1]
	return strings.ToLower(last)
}

func applyFilter(entry model.WhereEntry, in []model.Binding) []model.Binding {
	if entry.Predicate == nil {
		return in
	}
	out := make([]model.Binding, 0, len(in))
	for _, b := range in {
		if entry.Predicate(b) {
			out = append(out, b)
		}
	}
	return out
}
