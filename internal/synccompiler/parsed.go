// Package synccompiler implements the Sync Compiler (§4.3): turning an
// already-parsed sync structure into a model.CompiledSync, or rejecting
// it with diagnostics. Parsing sync source text into this structure is
// out of scope here — callers (config loaders, the hot-reload watcher)
// hand the compiler typed data, not DSL text.
package synccompiler

import "github.com/concordhq/concord/internal/model"

// ParsedSync is the compiler's input shape: a sync as decoded from
// config, before variable-flow validation and ReferencedConcepts
// computation.
type ParsedSync struct {
	Name        string
	Annotations []string
	When        []model.Pattern
	Where       []model.WhereEntry
	Then        []model.ThenAction
}
