// Package cache implements the STT-Response Cache: an LRU mapping from
// (topic_id, normalized STT text) to a previously dispatched JSON command,
// letting repeated phrases skip inference entirely.
package cache

import (
	"strings"
	"time"
)

// snapshotVersion is bumped whenever the on-disk snapshot shape changes.
const snapshotVersion = 1

// Entry is one cached STT-text-to-command mapping.
type Entry struct {
	ID           string         `json:"id"`
	TopicID      string         `json:"topic_id"`
	Text         string         `json:"stt_text"`
	JSONOutput   map[string]any `json:"json_output"`
	EntityID     string         `json:"entity_id,omitempty"`
	SuccessCount int            `json:"success_count"`
	CreatedAt    time.Time      `json:"created_at"`
	LastUsedAt   time.Time      `json:"last_used_at"`
}

// Key is the cache's lookup key: a topic paired with normalized text.
type Key struct {
	TopicID string
	Text    string
}

// Normalize lowercases s and collapses any run of whitespace (including
// leading/trailing) down to single spaces, matching "Turn on  the LOUNGE
// light" -> "turn on the lounge light".
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
