// Package conceptstate defines durable per-concept key-value storage
// handed to in-process concept handlers so a concept can persist state
// across separate action invocations (a running total, a session, an
// actor's mailbox) without the engine itself knowing the storage
// backend.
package conceptstate

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a state key does not exist or has
// expired.
var ErrNotFound = errors.New("conceptstate: state not found")

// ErrVersionConflict is returned when Put is called with an
// ExpectedVersion that no longer matches the stored entry.
var ErrVersionConflict = errors.New("conceptstate: version conflict")

// Entry is a single state entry scoped to one concept.
type Entry struct {
	Concept   string          `json:"concept"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// PutOptions configures a state write.
type PutOptions struct {
	// TTL sets an expiration for the entry. Zero means no expiration.
	TTL time.Duration
	// ExpectedVersion makes the write conditional on the current
	// version matching. Zero disables the check.
	ExpectedVersion int64
}

// ListOptions configures a state listing.
type ListOptions struct {
	// Prefix filters keys by a common prefix.
	Prefix string
	// Limit caps the number of returned entries. Zero means unbounded.
	Limit int
	// Offset skips the first N matching entries, ordered by key.
	Offset int
}

// Store provides durable key-value state scoped to individual
// concepts. All keys are namespaced by concept URI, so two concepts
// can never collide on the same key.
type Store interface {
	// Get retrieves the state entry for concept/key. Returns
	// ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, concept, key string) (*Entry, error)

	// Put creates or updates a state entry. When opts.ExpectedVersion
	// is non-zero, the write fails with ErrVersionConflict unless the
	// current version matches.
	Put(ctx context.Context, concept, key string, value json.RawMessage, opts *PutOptions) (*Entry, error)

	// Delete removes a state entry. Deleting a key that does not
	// exist is not an error.
	Delete(ctx context.Context, concept, key string) error

	// List returns state entries for a concept, optionally filtered
	// by prefix, ordered by key.
	List(ctx context.Context, concept string, opts *ListOptions) ([]*Entry, error)

	// Ping verifies connectivity to the underlying backend.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
