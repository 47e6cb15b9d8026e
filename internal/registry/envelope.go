package registry

import (
	"encoding/json"

	"github.com/concordhq/concord/internal/model"
)

// Fixed gRPC method names every concept's gRPC server must expose. There
// is no per-concept .proto: all concepts are reached through these three
// methods on a shared service, distinguished by the Concept/Action
// fields inside the JSON envelope (§4.2.1).
const (
	grpcServiceName = "concord.concept.v1.ConceptService"
	MethodInvoke    = "/" + grpcServiceName + "/Invoke"
	MethodQuery     = "/" + grpcServiceName + "/Query"
	MethodHealth    = "/" + grpcServiceName + "/Health"
)

// invokeEnvelope is the wire shape of an Invoke request/response.
type invokeEnvelope struct {
	Concept string            `json:"concept"`
	Action  string            `json:"action"`
	Input   map[string]json.RawMessage `json:"input,omitempty"`
	Flow    string            `json:"flow,omitempty"`

	Variant string            `json:"variant,omitempty"`
	Output  map[string]json.RawMessage `json:"output,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// queryEnvelope is the wire shape of a Query request/response.
type queryEnvelope struct {
	Relation string                      `json:"relation"`
	Args     map[string]json.RawMessage  `json:"args,omitempty"`

	Rows  []map[string]json.RawMessage `json:"rows,omitempty"`
	Error string                       `json:"error,omitempty"`
}

// healthEnvelope is the wire shape of a Health response.
type healthEnvelope struct {
	Available bool `json:"available"`
}

func encodeFields(f model.Fields) (map[string]json.RawMessage, error) {
	if f == nil {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(f))
	for k, v := range f {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = b
	}
	return out, nil
}

func decodeFields(raw map[string]json.RawMessage) (model.Fields, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(model.Fields, len(raw))
	for k, b := range raw {
		var v model.Value
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
