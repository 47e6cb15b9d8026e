// Package controlapi exposes the running engine's control surface over
// HTTP: sync inspection, flow inspection, and hot-reload (§6.4). This is
// the "control transport" cmd/concordd's list-syncs/inspect-flow/reload
// subcommands talk to, since that state lives only inside the running
// daemon process (or, for flow history, may live in a non-durable
// in-memory log that only the daemon process can see).
package controlapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/concordhq/concord/internal/actionlog"
	"github.com/concordhq/concord/internal/engine"
	"github.com/concordhq/concord/internal/logging"
	"github.com/concordhq/concord/internal/model"
	"github.com/concordhq/concord/internal/observability"
)

// Reloader re-reads and recompiles the sync manifest, installing the
// result into the engine. Returns the list of diagnostics found (empty
// on success) or an error if the manifest itself could not be read.
type Reloader func() (diagnostics []string, err error)

// Handler serves the control-plane HTTP routes.
type Handler struct {
	Engine *engine.Engine
	Log    actionlog.Log
	Reload Reloader
}

// RegisterRoutes attaches the control-plane handlers to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.HandleFunc("/syncs", h.handleSyncs)
	mux.HandleFunc("/reload", h.handleReload)
	mux.HandleFunc("/flow/", h.handleFlow)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// SyncView is the JSON shape of one compiled sync's current state.
type SyncView struct {
	Name               string   `json:"name"`
	Annotations        []string `json:"annotations,omitempty"`
	ReferencedConcepts []string `json:"referencedConcepts"`
	Degraded           bool     `json:"degraded"`
}

func (h *Handler) handleSyncs(w http.ResponseWriter, r *http.Request) {
	degraded := make(map[string]struct{})
	for _, name := range h.Engine.DegradedSyncs() {
		degraded[name] = struct{}{}
	}

	syncs := h.Engine.CompiledSyncs()
	views := make([]SyncView, 0, len(syncs))
	for _, s := range syncs {
		_, isDegraded := degraded[s.Name]
		views = append(views, SyncView{
			Name:               s.Name,
			Annotations:        sortedKeys(s.Annotations),
			ReferencedConcepts: sortedKeys(s.ReferencedConcepts),
			Degraded:           isDegraded,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Reload == nil {
		http.Error(w, "reload is not configured", http.StatusServiceUnavailable)
		return
	}

	diags, err := h.Reload()
	if err != nil {
		logging.Op().Error("manifest reload failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(diags) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]interface{}{"diagnostics": diags})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "reloaded"})
}

// FlowRecord is the JSON shape of one action-log record for inspect-flow.
type FlowRecord struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Concept   string `json:"concept"`
	Action    string `json:"action"`
	Flow      string `json:"flow"`
	Parent    string `json:"parent,omitempty"`
	Sync      string `json:"sync,omitempty"`
	Variant   string `json:"variant,omitempty"`
	Timestamp string `json:"timestamp"`
}

// FlowEdge is the JSON shape of one sync-firing provenance edge:
// triggerID fired syncName, producing invocationID (§4.1(b)).
type FlowEdge struct {
	TriggerID    string `json:"triggerId"`
	SyncName     string `json:"syncName"`
	InvocationID string `json:"invocationId"`
}

// FlowView is the inspect-flow response: the flow's action-log records
// and every sync-firing edge recorded against a record in that flow
// (§6.4).
type FlowView struct {
	Records []FlowRecord `json:"records"`
	Edges   []FlowEdge   `json:"edges"`
}

func (h *Handler) handleFlow(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartServerSpan(r.Context(), "controlapi.inspect-flow")
	defer span.End()

	flow := r.URL.Path[len("/flow/"):]
	if flow == "" {
		http.Error(w, "flow id is required", http.StatusBadRequest)
		return
	}

	records, err := h.Log.RecordsForFlow(ctx, flow)
	if err != nil {
		observability.SetSpanError(span, err)
		http.Error(w, fmt.Sprintf("load flow: %s", err), http.StatusInternalServerError)
		return
	}

	views := make([]FlowRecord, len(records))
	for i, rec := range records {
		views[i] = toFlowRecord(rec)
	}

	var edges []FlowEdge
	for _, rec := range records {
		if rec.Kind != model.KindCompletion {
			continue
		}
		recEdges, err := h.Log.EdgesForTrigger(ctx, rec.ID)
		if err != nil {
			observability.SetSpanError(span, err)
			http.Error(w, fmt.Sprintf("load firing edges: %s", err), http.StatusInternalServerError)
			return
		}
		for _, e := range recEdges {
			edges = append(edges, FlowEdge{TriggerID: rec.ID, SyncName: e.SyncName, InvocationID: e.InvocationID})
		}
	}

	observability.SetSpanOK(span)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(FlowView{Records: views, Edges: edges})
}

func toFlowRecord(rec model.Record) FlowRecord {
	return FlowRecord{
		ID:        rec.ID,
		Kind:      string(rec.Kind),
		Concept:   rec.Concept,
		Action:    rec.Action,
		Flow:      rec.Flow,
		Parent:    rec.Parent,
		Sync:      rec.Sync,
		Variant:   rec.Variant,
		Timestamp: rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
