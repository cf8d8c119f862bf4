package topic

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested topic does not exist.
var ErrNotFound = errors.New("topic: not found")

// ErrGeneralUndeletable is returned by Delete when asked to remove the
// well-known "general" topic.
var ErrGeneralUndeletable = errors.New("topic: the \"general\" topic cannot be deleted")

// Store manages Topic records for every routing profile known to ORAC Core.
//
// All implementations must be safe for concurrent use. A single writer at a
// time is sufficient (store-wide lock acceptable); readers may proceed
// concurrently with one another but not during a write.
type Store interface {
	// GetOrAutocreate returns the topic with id, creating it with defaults
	// and AutoDiscovered=true if it does not yet exist.
	GetOrAutocreate(ctx context.Context, id string) (Topic, error)

	// Get returns the topic with id.
	// Returns [ErrNotFound] if no such topic exists.
	Get(ctx context.Context, id string) (Topic, error)

	// List returns every known topic. Order is not guaranteed.
	List(ctx context.Context) ([]Topic, error)

	// Update replaces id's configuration fields with patch. AutoDiscovered,
	// FirstSeen, and Heartbeat are preserved untouched.
	// Returns [ErrNotFound] if no such topic exists.
	Update(ctx context.Context, id string, patch Patch) (Topic, error)

	// UpdateHeartbeat mutates only id's Heartbeat fields. It never touches
	// BackendID, Settings, Grammar, Model, Name, or Enabled — this isolation
	// is a hard invariant, not an optimisation.
	// Auto-creates id if it does not yet exist.
	UpdateHeartbeat(ctx context.Context, id string, fields HeartbeatFields) (Topic, error)

	// LinkBackend attaches or detaches (backendID == "") a backend. Attaching
	// disables any static grammar on the topic, since backend-generated
	// grammar supersedes it.
	// Returns [ErrNotFound] if no such topic exists.
	LinkBackend(ctx context.Context, id, backendID string) (Topic, error)

	// MarkUsed updates id's LastUsed timestamp to now.
	// Returns [ErrNotFound] if no such topic exists.
	MarkUsed(ctx context.Context, id string, now time.Time) error

	// Delete removes the topic with id.
	// Returns [ErrGeneralUndeletable] for [GeneralTopicID].
	// Returns [ErrNotFound] if no such topic exists.
	Delete(ctx context.Context, id string) error
}
