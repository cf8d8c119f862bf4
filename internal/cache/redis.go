package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time assertion that RedisCache satisfies the Cache interface.
var _ Cache = (*RedisCache)(nil)

// RedisCache is an alternate [Cache] backend for multi-instance ORAC Core
// deployments that need a shared cache instead of each instance's own
// in-memory LRU. LRU recency is modeled with a sorted set scored by last-use
// time; eviction trims the set down to maxSize on every store.
type RedisCache struct {
	client  *redis.Client
	maxSize int
	prefix  string
}

// NewRedisCache constructs a RedisCache against an already-configured
// *redis.Client.
func NewRedisCache(client *redis.Client, maxSize int, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "orac:cache:"
	}
	return &RedisCache{client: client, maxSize: maxSize, prefix: keyPrefix}
}

func (c *RedisCache) entryKey(k Key) string {
	return c.prefix + "entry:" + k.TopicID + ":" + k.Text
}

func (c *RedisCache) recencyKey() string {
	return c.prefix + "recency"
}

func (c *RedisCache) lastStoredKey() string {
	return c.prefix + "last_stored"
}

// Get implements [Cache.Get].
func (c *RedisCache) Get(ctx context.Context, topicID, text string) (Entry, bool, error) {
	key := Key{TopicID: topicID, Text: Normalize(text)}

	raw, err := c.client.Get(ctx, c.entryKey(key)).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("cache: decode redis entry: %w", err)
	}

	entry.LastUsedAt = time.Now()
	if err := c.putEntry(ctx, key, entry); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Store implements [Cache.Store].
func (c *RedisCache) Store(ctx context.Context, topicID, text string, jsonOutput map[string]any, entityID string) error {
	key := Key{TopicID: topicID, Text: Normalize(text)}
	now := time.Now()

	existing, found, err := c.Get(ctx, topicID, text)
	if err != nil {
		return err
	}

	entry := existing
	if !found {
		entry = Entry{TopicID: topicID, Text: key.Text, CreatedAt: now, SuccessCount: 0}
	}
	entry.SuccessCount++
	entry.LastUsedAt = now
	entry.JSONOutput = jsonOutput
	if entityID != "" {
		entry.EntityID = entityID
	}

	if err := c.putEntry(ctx, key, entry); err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.lastStoredKey(), key.TopicID+"\x00"+key.Text, 0).Err(); err != nil {
		return fmt.Errorf("cache: redis set last-stored: %w", err)
	}

	return c.evictLocked(ctx)
}

func (c *RedisCache) putEntry(ctx context.Context, key Key, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: encode redis entry: %w", err)
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.entryKey(key), data, 0)
	pipe.ZAdd(ctx, c.recencyKey(), redis.Z{Score: float64(entry.LastUsedAt.UnixNano()), Member: c.entryKey(key)})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: redis pipeline: %w", err)
	}
	return nil
}

func (c *RedisCache) evictLocked(ctx context.Context) error {
	size, err := c.client.ZCard(ctx, c.recencyKey()).Result()
	if err != nil {
		return fmt.Errorf("cache: redis zcard: %w", err)
	}
	if int(size) <= c.maxSize {
		return nil
	}
	excess := int(size) - c.maxSize
	oldest, err := c.client.ZRange(ctx, c.recencyKey(), 0, int64(excess)-1).Result()
	if err != nil {
		return fmt.Errorf("cache: redis zrange: %w", err)
	}
	for _, member := range oldest {
		c.client.Del(ctx, member)
	}
	return c.client.ZRem(ctx, c.recencyKey(), redisMembers(oldest)...).Err()
}

func redisMembers(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// RemoveLast implements [Cache.RemoveLast].
func (c *RedisCache) RemoveLast(ctx context.Context, withinSeconds int) (bool, error) {
	raw, err := c.client.Get(ctx, c.lastStoredKey()).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: redis get last-stored: %w", err)
	}

	topicID, text, ok := splitLastStored(raw)
	if !ok {
		return false, nil
	}
	key := Key{TopicID: topicID, Text: text}

	// Read the entry directly rather than through Get, which would refresh
	// LastUsedAt to now and make every undo look recent. The age checked is
	// that of the entry's last Store or Get.
	entryRaw, err := c.client.Get(ctx, c.entryKey(key)).Bytes()
	if err != nil {
		c.client.Del(ctx, c.lastStoredKey())
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("cache: redis get: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(entryRaw, &entry); err != nil {
		return false, fmt.Errorf("cache: decode redis entry: %w", err)
	}
	if time.Since(entry.LastUsedAt) > time.Duration(withinSeconds)*time.Second {
		return false, nil
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.entryKey(key))
	pipe.ZRem(ctx, c.recencyKey(), c.entryKey(key))
	pipe.Del(ctx, c.lastStoredKey())
	_, err = pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("cache: redis pipeline: %w", err)
	}
	return true, nil
}

func splitLastStored(raw string) (topicID, text string, ok bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == 0 {
			return raw[:i], raw[i+1:], true
		}
	}
	return "", "", false
}

// Clear implements [Cache.Clear].
func (c *RedisCache) Clear(ctx context.Context) (int, error) {
	members, err := c.client.ZRange(ctx, c.recencyKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: redis zrange: %w", err)
	}
	pipe := c.client.TxPipeline()
	for _, m := range members {
		pipe.Del(ctx, m)
	}
	pipe.Del(ctx, c.recencyKey())
	pipe.Del(ctx, c.lastStoredKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cache: redis pipeline: %w", err)
	}
	return len(members), nil
}

// List implements [Cache.List]. Entries are returned most-recently-used
// first. limit <= 0 means unbounded.
func (c *RedisCache) List(ctx context.Context, limit int) ([]Entry, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1
	}
	members, err := c.client.ZRevRange(ctx, c.recencyKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: redis zrevrange: %w", err)
	}
	out := make([]Entry, 0, len(members))
	for _, m := range members {
		raw, err := c.client.Get(ctx, m).Bytes()
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
