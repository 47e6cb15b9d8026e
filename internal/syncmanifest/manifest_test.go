package syncmanifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadAndCompileYAML(t *testing.T) {
	path := writeManifest(t, "syncs.yaml", `
syncs:
  - name: NotifyOnOrder
    annotations: [critical]
    when:
      - concept: app/orders
        action: create
        output:
          orderId: {var: orderId}
    where:
      - bind:
          as: token
          expr: uuid()
      - query:
          concept: app/users
          bindings:
            - {field: id, var: userId, kind: result}
    then:
      - concept: app/notifications
        action: send
        fields:
          orderId: {var: orderId}
          token: {var: token}
          subject: {literal: "order {{orderId}} placed"}
`)

	compiled, diags, err := LoadAndCompile(path)
	if err != nil {
		t.Fatalf("LoadAndCompile: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}
	if len(compiled) != 1 || compiled[0].Name != "NotifyOnOrder" {
		t.Fatalf("unexpected compiled syncs: %+v", compiled)
	}
	if !compiled[0].HasAnnotation("critical") {
		t.Fatal("expected critical annotation")
	}
	if _, ok := compiled[0].ReferencedConcepts["app/users"]; !ok {
		t.Fatal("expected app/users in ReferencedConcepts via query entry")
	}
}

func TestLoadAndCompileJSON(t *testing.T) {
	path := writeManifest(t, "syncs.json", `{
		"syncs": [{
			"name": "S1",
			"when": [{
				"concept": "app/orders",
				"action": "create",
				"output": {"orderId": {"var": "orderId"}}
			}],
			"then": [{
				"concept": "app/notifications",
				"action": "send",
				"fields": {"orderId": {"var": "orderId"}}
			}]
		}]
	}`)

	compiled, diags, err := LoadAndCompile(path)
	if err != nil {
		t.Fatalf("LoadAndCompile: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}
	if len(compiled) != 1 {
		t.Fatalf("expected one compiled sync, got %d", len(compiled))
	}
}

func TestCompileReportsUnboundVariableDiagnostic(t *testing.T) {
	m := &Manifest{
		Syncs: []SyncDef{
			{
				Name: "Bad",
				When: []Pattern{
					{Concept: "app/orders", Action: "create"},
				},
				Then: []ThenAction{
					{
						Concept: "app/notifications",
						Action:  "send",
						Fields:  map[string]ThenField{"userId": {Var: "userId"}},
					},
				},
			},
		},
	}

	compiled, diags := Compile(m)
	if len(compiled) != 0 {
		t.Fatalf("expected no compiled syncs, got %+v", compiled)
	}
	if len(diags) != 1 || diags[0].Rule != "then-unbound" {
		t.Fatalf("expected a single then-unbound diagnostic, got %+v", diags)
	}
}

func TestCompileReportsDecodeDiagnosticForAmbiguousFieldMatch(t *testing.T) {
	m := &Manifest{
		Syncs: []SyncDef{
			{
				Name: "Ambiguous",
				When: []Pattern{
					{
						Concept: "app/orders",
						Action:  "create",
						Output: map[string]FieldMatch{
							"orderId": {Var: "orderId", Wildcard: true},
						},
					},
				},
				Then: []ThenAction{
					{Concept: "app/notifications", Action: "send"},
				},
			},
		},
	}

	compiled, diags := Compile(m)
	if len(compiled) != 0 {
		t.Fatalf("expected no compiled syncs, got %+v", compiled)
	}
	if len(diags) != 1 || diags[0].Rule != "decode" {
		t.Fatalf("expected a single decode diagnostic, got %+v", diags)
	}
}

func TestWhereEntryRequiresExactlyOneKind(t *testing.T) {
	m := &Manifest{
		Syncs: []SyncDef{
			{
				Name: "NoKind",
				When: []Pattern{{Concept: "app/orders", Action: "create"}},
				Where: []WhereEntry{
					{},
				},
				Then: []ThenAction{{Concept: "app/notifications", Action: "send"}},
			},
		},
	}

	compiled, diags := Compile(m)
	if len(compiled) != 0 {
		t.Fatalf("expected no compiled syncs, got %+v", compiled)
	}
	if len(diags) != 1 || diags[0].Rule != "decode" {
		t.Fatalf("expected a single decode diagnostic, got %+v", diags)
	}
}
