package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/oraclab/oraccore/internal/atomicfile"
	"github.com/google/uuid"
)

// Compile-time assertion that LRUCache satisfies the Cache interface.
var _ Cache = (*LRUCache)(nil)

// LRUCache is an in-memory, disk-snapshotted implementation of [Cache].
// Most-recently-used entries sit at the back of the list; eviction removes
// from the front. The zero value is not usable — construct with
// [NewLRUCache].
type LRUCache struct {
	maxSize      int
	snapshotPath string

	mu          sync.Mutex
	ll          *list.List
	index       map[Key]*list.Element
	lastStored  *Key
	lastStoreAt time.Time
}

// NewLRUCache constructs an LRUCache bounded at maxSize entries. If
// snapshotPath is non-empty, it is loaded on construction (an absent file
// starts an empty cache; a corrupt one does too, after logging a warning)
// and rewritten after every mutation.
func NewLRUCache(maxSize int, snapshotPath string) (*LRUCache, error) {
	c := &LRUCache{
		maxSize:      maxSize,
		snapshotPath: snapshotPath,
		ll:           list.New(),
		index:        make(map[Key]*list.Element),
	}
	if snapshotPath == "" {
		return c, nil
	}
	if err := c.loadSnapshot(); err != nil {
		return c, err
	}
	return c, nil
}

// Get implements [Cache.Get].
func (c *LRUCache) Get(ctx context.Context, topicID, text string) (Entry, bool, error) {
	key := Key{TopicID: topicID, Text: Normalize(text)}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return Entry{}, false, nil
	}
	c.ll.MoveToBack(el)
	entry := el.Value.(*Entry)
	entry.LastUsedAt = time.Now()
	return *entry, true, nil
}

// Store implements [Cache.Store].
func (c *LRUCache) Store(ctx context.Context, topicID, text string, jsonOutput map[string]any, entityID string) error {
	key := Key{TopicID: topicID, Text: Normalize(text)}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		entry := el.Value.(*Entry)
		entry.SuccessCount++
		entry.LastUsedAt = now
		entry.JSONOutput = jsonOutput
		if entityID != "" {
			entry.EntityID = entityID
		}
		c.ll.MoveToBack(el)
	} else {
		entry := &Entry{
			ID:           uuid.NewString(),
			TopicID:      topicID,
			Text:         key.Text,
			JSONOutput:   jsonOutput,
			EntityID:     entityID,
			SuccessCount: 1,
			CreatedAt:    now,
			LastUsedAt:   now,
		}
		el := c.ll.PushBack(entry)
		c.index[key] = el

		for c.ll.Len() > c.maxSize {
			oldest := c.ll.Front()
			oldestEntry := oldest.Value.(*Entry)
			delete(c.index, Key{TopicID: oldestEntry.TopicID, Text: oldestEntry.Text})
			c.ll.Remove(oldest)
		}
	}

	c.lastStored = &key
	c.lastStoreAt = now
	return c.saveSnapshotLocked()
}

// RemoveLast implements [Cache.RemoveLast].
func (c *LRUCache) RemoveLast(ctx context.Context, withinSeconds int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastStored == nil {
		return false, nil
	}
	elapsed := time.Since(c.lastStoreAt)
	if elapsed > time.Duration(withinSeconds)*time.Second {
		return false, nil
	}

	key := *c.lastStored
	el, ok := c.index[key]
	c.lastStored = nil
	if !ok {
		return false, nil
	}
	c.ll.Remove(el)
	delete(c.index, key)
	return true, c.saveSnapshotLocked()
}

// Clear implements [Cache.Clear].
func (c *LRUCache) Clear(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := c.ll.Len()
	c.ll.Init()
	c.index = make(map[Key]*list.Element)
	c.lastStored = nil
	return count, c.saveSnapshotLocked()
}

// List implements [Cache.List]. Entries are returned most-recently-used
// first. limit <= 0 means unbounded.
func (c *LRUCache) List(ctx context.Context, limit int) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit <= 0 {
		limit = c.ll.Len()
	}
	out := make([]Entry, 0, min(limit, c.ll.Len()))
	for el := c.ll.Back(); el != nil && len(out) < limit; el = el.Prev() {
		out = append(out, *el.Value.(*Entry))
	}
	return out, nil
}

// snapshot is the on-disk format: entries are stored in LRU order
// (least-recently-used first), matching in-memory list order.
type snapshot struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Entries []Entry   `json:"entries"`
}

func (c *LRUCache) saveSnapshotLocked() error {
	if c.snapshotPath == "" {
		return nil
	}
	snap := snapshot{Version: snapshotVersion, SavedAt: time.Now()}
	for el := c.ll.Front(); el != nil; el = el.Next() {
		snap.Entries = append(snap.Entries, *el.Value.(*Entry))
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(c.snapshotPath, data, 0o644)
}

func (c *LRUCache) loadSnapshot() error {
	data, err := atomicfile.ReadFile(c.snapshotPath)
	if err != nil {
		return nil // absent file: start fresh, tolerated by design
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("cache: corrupt snapshot, starting with an empty cache", "path", c.snapshotPath, "error", err)
		return nil // corrupt file: start fresh, tolerated by design
	}
	for i := range snap.Entries {
		entry := snap.Entries[i]
		key := Key{TopicID: entry.TopicID, Text: entry.Text}
		el := c.ll.PushBack(&entry)
		c.index[key] = el
	}
	return nil
}
