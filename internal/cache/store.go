package cache

import "context"

// Cache is the STT-Response Cache's capability interface. Both [LRUCache]
// and a Redis-backed implementation satisfy it, so the Generation Pipeline
// never branches on which backend is configured.
type Cache interface {
	// Get looks up (topicID, text), promoting a hit to most-recently-used
	// and refreshing its LastUsedAt.
	Get(ctx context.Context, topicID, text string) (Entry, bool, error)

	// Store upserts (topicID, text) -> jsonOutput. An existing entry has its
	// SuccessCount incremented and timestamps refreshed; a new entry may
	// trigger LRU eviction. Also records the key as the "last stored" key
	// for a subsequent RemoveLast.
	Store(ctx context.Context, topicID, text string, jsonOutput map[string]any, entityID string) error

	// RemoveLast undoes the most recent Store if it happened within
	// withinSeconds, clearing the last-stored marker either way it fires.
	// Returns false if there was nothing to undo.
	RemoveLast(ctx context.Context, withinSeconds int) (bool, error)

	// Clear removes every entry, returning the count removed.
	Clear(ctx context.Context) (int, error)

	// List returns up to limit entries, most-recently-used first. limit <= 0
	// means unbounded.
	List(ctx context.Context, limit int) ([]Entry, error)
}
