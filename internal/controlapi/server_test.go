package controlapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/concordhq/concord/internal/actionlog"
	"github.com/concordhq/concord/internal/engine"
	"github.com/concordhq/concord/internal/model"
	"github.com/concordhq/concord/internal/registry"
)

func TestHandleFlowIncludesFiringEdges(t *testing.T) {
	log := actionlog.NewMemoryLog(nil)
	ctx := context.Background()

	comp := model.Completion{ID: "c1", Concept: "U", Action: "create", Variant: "ok", Flow: "f1"}
	if _, err := log.Append(ctx, comp, ""); err != nil {
		t.Fatalf("Append: %v", err)
	}
	inv := model.Invocation{ID: "inv1", Concept: "P", Action: "init", Flow: "f1", Sync: "S1"}
	if _, err := log.AppendInvocation(ctx, inv, "c1"); err != nil {
		t.Fatalf("AppendInvocation: %v", err)
	}
	if err := log.RecordFiringEdge(ctx, "c1", "S1", "inv1"); err != nil {
		t.Fatalf("RecordFiringEdge: %v", err)
	}

	h := &Handler{Engine: engine.New(log, registry.New()), Log: log}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/flow/f1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var view FlowView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(view.Records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(view.Records), view.Records)
	}
	if len(view.Edges) != 1 {
		t.Fatalf("expected 1 firing edge, got %d: %+v", len(view.Edges), view.Edges)
	}
	edge := view.Edges[0]
	if edge.TriggerID != "c1" || edge.SyncName != "S1" || edge.InvocationID != "inv1" {
		t.Fatalf("unexpected edge: %+v", edge)
	}
}

func TestHandleFlowEmptyFlowHasNoEdges(t *testing.T) {
	log := actionlog.NewMemoryLog(nil)
	h := &Handler{Engine: engine.New(log, registry.New()), Log: log}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/flow/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view FlowView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(view.Records) != 0 || len(view.Edges) != 0 {
		t.Fatalf("expected empty view, got %+v", view)
	}
}
