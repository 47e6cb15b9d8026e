// Package syncindex implements the Sync Index (§4.4): the
// (concept, action) → compiled syncs lookup the engine consults on
// every completion, replaced atomically on hot-reload.
package syncindex

import (
	"sync/atomic"

	"github.com/concordhq/concord/internal/model"
)

type key struct {
	concept string
	action  string
}

// Index is an immutable snapshot of compiled syncs keyed by the
// (concept, action) pairs their when-patterns reference. Build a new
// Index per reload and swap it into a Store; never mutate one in place
// (§4.4, "replaced atomically").
type Index struct {
	byKey map[key][]*model.CompiledSync
	all   []*model.CompiledSync
}

// Build scans every sync's when patterns and groups the syncs by each
// (concept, action) pair they can match on.
func Build(syncs []*model.CompiledSync) *Index {
	idx := &Index{byKey: make(map[key][]*model.CompiledSync), all: syncs}
	for _, s := range syncs {
		seen := make(map[key]struct{})
		for _, p := range s.When {
			k := key{concept: p.Concept, action: p.Action}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			idx.byKey[k] = append(idx.byKey[k], s)
		}
	}
	return idx
}

// Lookup returns the syncs whose when-patterns reference (concept,
// action), in no particular order.
func (idx *Index) Lookup(concept, action string) []*model.CompiledSync {
	return idx.byKey[key{concept: concept, action: action}]
}

// All returns every compiled sync in this index.
func (idx *Index) All() []*model.CompiledSync {
	return idx.all
}

// Store holds the currently-active Index behind an atomic pointer so
// readers never observe a partially-built index and in-flight matches
// can keep using the index reference they captured at entry (§4.4,
// §4.9).
type Store struct {
	current atomic.Pointer[Index]
}

// NewStore creates a Store seeded with idx (may be an empty Build(nil)).
func NewStore(idx *Index) *Store {
	s := &Store{}
	s.current.Store(idx)
	return s
}

// Current returns the active index. Safe to call concurrently with
// Swap; the returned pointer remains valid even after a later Swap.
func (s *Store) Current() *Index {
	return s.current.Load()
}

// Swap atomically replaces the active index, returning the previous
// one.
func (s *Store) Swap(idx *Index) *Index {
	return s.current.Swap(idx)
}
