// Package mapping implements the Device Mapping Store: a persistent,
// per-backend record of enabled devices and the device-type/location
// vocabulary an operator assigns to them.
package mapping

import "time"

// DefaultDeviceTypes seed a freshly created backend's vocabulary.
var DefaultDeviceTypes = []string{"lights", "heating", "media_player", "blinds", "switches"}

// DeviceMapping is an operator-authored label attached to one concrete
// backend entity.
//
// A mapping with Enabled true but an empty DeviceType or Location is
// "incomplete" and is excluded from grammar generation.
type DeviceMapping struct {
	Enabled      bool   `json:"enabled"`
	DeviceType   string `json:"device_type"`
	Location     string `json:"location"`
	OriginalName string `json:"original_name"`
	Domain       string `json:"domain"`
}

// Complete reports whether m carries both a device type and a location.
func (m DeviceMapping) Complete() bool {
	return m.DeviceType != "" && m.Location != ""
}

// EntityPatch describes a partial update to a [DeviceMapping]. Fields left
// nil are not modified by [Store.UpsertEntity]/[Store.BulkUpsert].
type EntityPatch struct {
	Enabled      *bool
	DeviceType   *string
	Location     *string
	OriginalName *string
	Domain       *string
}

// BackendStatus records the last known reachability of a backend's native
// client.
type BackendStatus struct {
	Connected bool      `json:"connected"`
	LastCheck time.Time `json:"last_check"`
	Error     string    `json:"error,omitempty"`
}

// BackendStatistics carries operator-facing counters about a backend.
type BackendStatistics struct {
	EntityCount  int `json:"entity_count"`
	MappedCount  int `json:"mapped_count"`
	ConflictCount int `json:"conflict_count"`
}

// Record is the persisted, per-backend mapping store entry.
//
// DeviceTypes and Locations are supersets of whatever appears in
// DeviceMappings — operators may pre-seed labels before any entity is
// assigned one.
type Record struct {
	ID             string                   `json:"id"`
	Name           string                   `json:"name"`
	Type           string                   `json:"type"`
	Connection     map[string]string        `json:"connection"`
	DeviceMappings map[string]DeviceMapping `json:"device_mappings"`
	DeviceTypes    []string                 `json:"device_types"`
	Locations      []string                 `json:"locations"`
	Status         BackendStatus            `json:"status"`
	Statistics     BackendStatistics        `json:"statistics"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// Conflict names a (device_type, location) pair claimed by more than one
// enabled mapping, and the entity ids involved.
type Conflict struct {
	DeviceType string   `json:"device_type"`
	Location   string   `json:"location"`
	EntityIDs  []string `json:"entity_ids"`
}

// clone returns a deep copy of r so callers holding a returned [Record]
// cannot mutate store-internal state.
func (r Record) clone() Record {
	out := r
	out.Connection = cloneStringMap(r.Connection)
	out.DeviceTypes = append([]string(nil), r.DeviceTypes...)
	out.Locations = append([]string(nil), r.Locations...)
	out.DeviceMappings = make(map[string]DeviceMapping, len(r.DeviceMappings))
	for k, v := range r.DeviceMappings {
		out.DeviceMappings[k] = v
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
