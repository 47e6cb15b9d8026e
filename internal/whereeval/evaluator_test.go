package whereeval

import (
	"context"
	"testing"

	"github.com/concordhq/concord/internal/model"
	"github.com/concordhq/concord/internal/registry"
)

type fakeTransport struct {
	rows []registry.Row
	err  error
}

func (f *fakeTransport) Invoke(ctx context.Context, inv model.Invocation) (model.Completion, error) {
	return model.Completion{}, nil
}
func (f *fakeTransport) Query(ctx context.Context, req registry.QueryRequest) ([]registry.Row, error) {
	return f.rows, f.err
}
func (f *fakeTransport) Health(ctx context.Context) registry.Health { return registry.Health{Available: true} }
func (f *fakeTransport) QueryMode() registry.QueryMode              { return registry.QueryModeLite }

type fakeResolver struct {
	transports map[string]registry.Transport
}

func (r *fakeResolver) Resolve(uri string) (registry.Transport, bool) {
	t, ok := r.transports[uri]
	return t, ok
}

func TestEvaluateBindUUID(t *testing.T) {
	entries := []model.WhereEntry{{Kind: model.WhereBind, As: "token", Expr: "uuid()"}}
	out := Evaluate(context.Background(), entries, []model.Binding{model.NewBinding()}, &fakeResolver{})
	if len(out) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(out))
	}
	v, ok := out[0].Get("token")
	if !ok || v.Text() == "" {
		t.Fatal("expected a non-empty token binding")
	}
}

func TestEvaluateBindStringLiteral(t *testing.T) {
	entries := []model.WhereEntry{{Kind: model.WhereBind, As: "status", Expr: `"pending"`}}
	out := Evaluate(context.Background(), entries, []model.Binding{model.NewBinding()}, &fakeResolver{})
	v, _ := out[0].Get("status")
	if v.Text() != "pending" {
		t.Fatalf("expected status=pending, got %q", v.Text())
	}
}

func TestEvaluateQueryUnavailableConceptDropsBinding(t *testing.T) {
	entries := []model.WhereEntry{{Kind: model.WhereQuery, Concept: "app/users"}}
	out := Evaluate(context.Background(), entries, []model.Binding{model.NewBinding()}, &fakeResolver{transports: map[string]registry.Transport{}})
	if len(out) != 0 {
		t.Fatalf("expected query against unavailable concept to drop the binding, got %d", len(out))
	}
}

func TestEvaluateQueryExtendsResultBinding(t *testing.T) {
	transport := &fakeTransport{rows: []registry.Row{{"name": model.String("alice")}}}
	entries := []model.WhereEntry{
		{
			Kind:     model.WhereQuery,
			Concept:  "app/users",
			Bindings: []model.QueryBinding{{Field: "id", Var: "userId", Kind: model.QueryBindingAuto}, {Field: "name", Var: "userName", Kind: model.QueryBindingResult}},
		},
	}
	start := model.NewBinding().With("userId", model.String("u1"))
	resolver := &fakeResolver{transports: map[string]registry.Transport{"app/users": transport}}

	out := Evaluate(context.Background(), entries, []model.Binding{start}, resolver)
	if len(out) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(out))
	}
	v, ok := out[0].Get("userName")
	if !ok || v.Text() != "alice" {
		t.Fatalf("expected userName=alice, got %+v ok=%v", v, ok)
	}
}

func TestEvaluateFilterKeepsMatching(t *testing.T) {
	b1 := model.NewBinding().With("amount", model.Number(10))
	b2 := model.NewBinding().With("amount", model.Number(100))
	entries := []model.WhereEntry{
		{
			Kind: model.WhereFilter,
			Predicate: func(b model.Binding) bool {
				v, _ := b.Get("amount")
				n, _ := v.NumberValue()
				return n > 50
			},
		},
	}
	out := Evaluate(context.Background(), entries, []model.Binding{b1, b2}, &fakeResolver{})
	if len(out) != 1 {
		t.Fatalf("expected 1 surviving binding, got %d", len(out))
	}
}

func TestDeriveRelationLowercasesLastSegment(t *testing.T) {
	if got := deriveRelation("app/Users"); got != "users" {
		t.Fatalf("expected users, got %q", got)
	}
}
