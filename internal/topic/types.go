// Package topic implements the Topic Registry: named routing profiles
// binding a model, sampling settings, prompt prefix, and optional backend,
// with liveness tracked through a strictly separate heartbeat path.
package topic

import "time"

// GeneralTopicID is the well-known topic that always exists and can never
// be deleted.
const GeneralTopicID = "general"

// Status is a topic's derived liveness classification.
type Status string

const (
	StatusActive Status = "active"
	StatusIdle   Status = "idle"
	StatusStale  Status = "stale"
)

// Settings are a topic's sampling and prompt configuration. Topics
// exclusively own their Settings; nothing outside [Store.Update] and
// [Store.GetOrAutocreate] may write them.
type Settings struct {
	Temperature  *float64 `json:"temperature,omitempty"`
	TopP         *float64 `json:"top_p,omitempty"`
	TopK         *int     `json:"top_k,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	NoThink      bool     `json:"no_think,omitempty"`
	ForceJSON    bool     `json:"force_json,omitempty"`
}

// Grammar describes which grammar file a topic's requests should be
// constrained by, if any, absent a backend-generated one.
type Grammar struct {
	Enabled bool   `json:"enabled"`
	File    string `json:"file,omitempty"`
}

// Heartbeat is a topic's liveness state. It is mutated only by
// [Store.UpdateHeartbeat], never by [Store.Update].
type Heartbeat struct {
	LastSeen     time.Time `json:"last_seen"`
	Status       Status    `json:"status,omitempty"`
	WakeWord     string    `json:"wake_word,omitempty"`
	TriggerCount int       `json:"trigger_count"`
}

// Topic is a named routing profile. See the package doc for the invariant
// separating Heartbeat from everything else.
type Topic struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Enabled        bool      `json:"enabled"`
	Model          string    `json:"model,omitempty"`
	BackendID      string    `json:"backend_id,omitempty"`
	Settings       Settings  `json:"settings"`
	Grammar        Grammar   `json:"grammar"`
	AutoDiscovered bool      `json:"auto_discovered"`
	FirstSeen      time.Time `json:"first_seen"`
	LastUsed       time.Time `json:"last_used,omitempty"`
	Heartbeat      Heartbeat `json:"heartbeat"`
}

// HeartbeatFields is the subset of Topic that [Store.UpdateHeartbeat] may
// write. It intentionally omits every configuration field.
type HeartbeatFields struct {
	WakeWord     string
	TriggerCount int
	Now          time.Time
}

// Patch describes a whole-record replacement for [Store.Update]. Protected
// metadata (AutoDiscovered, FirstSeen) is preserved regardless of Patch's
// content.
type Patch struct {
	Name      string
	Enabled   bool
	Model     string
	BackendID string
	Settings  Settings
	Grammar   Grammar
}

func (t Topic) clone() Topic {
	out := t
	if t.Settings.Temperature != nil {
		v := *t.Settings.Temperature
		out.Settings.Temperature = &v
	}
	if t.Settings.TopP != nil {
		v := *t.Settings.TopP
		out.Settings.TopP = &v
	}
	if t.Settings.TopK != nil {
		v := *t.Settings.TopK
		out.Settings.TopK = &v
	}
	if t.Settings.MaxTokens != nil {
		v := *t.Settings.MaxTokens
		out.Settings.MaxTokens = &v
	}
	return out
}

// DeriveStatus classifies a heartbeat's liveness given its LastSeen age
// against the configured active/idle thresholds.
func DeriveStatus(lastSeen time.Time, now time.Time, activeThreshold, idleThreshold time.Duration) Status {
	if lastSeen.IsZero() {
		return StatusStale
	}
	age := now.Sub(lastSeen)
	switch {
	case age <= activeThreshold:
		return StatusActive
	case age <= idleThreshold:
		return StatusIdle
	default:
		return StatusStale
	}
}
