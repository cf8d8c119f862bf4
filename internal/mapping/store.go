package mapping

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested backend does not exist.
var ErrNotFound = errors.New("mapping: backend not found")

// ErrDuplicateID reports a backend id that already exists. CreateBackend
// does not return it: on a collision it draws a new id until one is unused.
var ErrDuplicateID = errors.New("mapping: backend id already exists")

// Store manages Device Mapping records for every backend known to ORAC Core.
//
// All implementations must be safe for concurrent use. Write operations
// either fully succeed, in memory and on disk, or leave prior state intact.
type Store interface {
	// CreateBackend allocates a fresh backend record with id
	// "<type>_<random8>", seeds [DefaultDeviceTypes], and persists it.
	// A duplicate name is allowed; ids are the unique key.
	CreateBackend(ctx context.Context, name, typ string, connection map[string]string) (Record, error)

	// Get returns a copy of the backend record with the given id.
	// Returns [ErrNotFound] if no such backend exists.
	Get(ctx context.Context, backendID string) (Record, error)

	// List returns a copy of every known backend record. Order is not
	// guaranteed.
	List(ctx context.Context) ([]Record, error)

	// UpsertEntity merges patch into the mapping for entityID, creating the
	// entity record if it is missing. OriginalName and Domain are preserved
	// from the existing record when patch leaves them nil.
	// Returns [ErrNotFound] if backendID does not exist.
	UpsertEntity(ctx context.Context, backendID, entityID string, patch EntityPatch) (DeviceMapping, error)

	// BulkUpsert applies patch to every entity id in entityIDs. Either all
	// entities are persisted or none are.
	// Returns [ErrNotFound] if backendID does not exist.
	BulkUpsert(ctx context.Context, backendID string, entityIDs []string, patch EntityPatch) error

	// AddDeviceType adds label to backendID's device-type vocabulary.
	// Comparison for uniqueness is case-insensitive; the label is stored
	// case-preserving. A no-op if the label already exists.
	// Returns [ErrNotFound] if backendID does not exist.
	AddDeviceType(ctx context.Context, backendID, label string) error

	// AddLocation adds label to backendID's location vocabulary, with the
	// same case-insensitive uniqueness rule as AddDeviceType.
	// Returns [ErrNotFound] if backendID does not exist.
	AddLocation(ctx context.Context, backendID, label string) error

	// ValidateMappings returns every (device_type, location) pair claimed by
	// more than one enabled mapping of backendID, with the entity ids
	// involved.
	// Returns [ErrNotFound] if backendID does not exist.
	ValidateMappings(ctx context.Context, backendID string) ([]Conflict, error)

	// Delete removes the backend record. Permitted even if topics still
	// reference backendID; those topics must be treated as unlinked on next
	// read (soft reference), which is the Topic Registry's responsibility.
	// Returns [ErrNotFound] if backendID does not exist.
	Delete(ctx context.Context, backendID string) error
}
