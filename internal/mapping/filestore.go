package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oraclab/oraccore/internal/atomicfile"
)

// Compile-time assertion that FileStore satisfies the Store interface.
var _ Store = (*FileStore)(nil)

// FileStore is a [Store] implementation persisting one JSON file per
// backend under dir. It is safe for concurrent use: a single store-wide
// lock serializes all mutations, which spec.md explicitly allows ("store-wide
// lock acceptable").
//
// Loading is tolerant of a missing directory (empty store) but fails loudly
// if an existing file contains corrupt JSON — silent data loss is worse
// than a startup error here.
type FileStore struct {
	dir string

	mu       sync.RWMutex
	backends map[string]Record
}

// NewFileStore loads every "*.json" file in dir into memory and returns a
// ready-to-use [FileStore]. A non-existent dir is treated as an empty store.
func NewFileStore(dir string) (*FileStore, error) {
	fs := &FileStore{dir: dir, backends: make(map[string]Record)}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mapping: read dir %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := atomicfile.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("mapping: read %q: %w", path, err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("mapping: corrupt backend file %q: %w", path, err)
		}
		fs.backends[rec.ID] = rec
	}

	slog.Info("mapping store loaded", "dir", dir, "backends", len(fs.backends))
	return fs, nil
}

func (fs *FileStore) pathFor(id string) string {
	return filepath.Join(fs.dir, id+".json")
}

// CreateBackend implements [Store.CreateBackend].
func (fs *FileStore) CreateBackend(ctx context.Context, name, typ string, connection map[string]string) (Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var id string
	for {
		candidate, err := generateBackendID(typ)
		if err != nil {
			return Record{}, fmt.Errorf("mapping: create_backend: %w", err)
		}
		if _, exists := fs.backends[candidate]; !exists {
			id = candidate
			break
		}
	}

	now := time.Now().UTC()
	rec := Record{
		ID:             id,
		Name:           name,
		Type:           typ,
		Connection:     cloneStringMap(connection),
		DeviceMappings: make(map[string]DeviceMapping),
		DeviceTypes:    append([]string(nil), DefaultDeviceTypes...),
		Locations:      nil,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := fs.persistLocked(rec); err != nil {
		return Record{}, fmt.Errorf("mapping: create_backend %q: %w", id, err)
	}
	fs.backends[id] = rec
	slog.Info("backend created", "backend_id", id, "name", name, "type", typ)
	return rec.clone(), nil
}

// Get implements [Store.Get].
func (fs *FileStore) Get(ctx context.Context, backendID string) (Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	rec, ok := fs.backends[backendID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.clone(), nil
}

// List implements [Store.List].
func (fs *FileStore) List(ctx context.Context) ([]Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]Record, 0, len(fs.backends))
	for _, rec := range fs.backends {
		out = append(out, rec.clone())
	}
	return out, nil
}

// UpsertEntity implements [Store.UpsertEntity].
func (fs *FileStore) UpsertEntity(ctx context.Context, backendID, entityID string, patch EntityPatch) (DeviceMapping, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	rec, ok := fs.backends[backendID]
	if !ok {
		return DeviceMapping{}, ErrNotFound
	}

	working := rec.clone()
	updated := applyPatch(working.DeviceMappings[entityID], patch)
	working.DeviceMappings[entityID] = updated
	working.UpdatedAt = time.Now().UTC()

	if err := fs.persistLocked(working); err != nil {
		return DeviceMapping{}, fmt.Errorf("mapping: upsert_entity %q/%q: %w", backendID, entityID, err)
	}
	fs.backends[backendID] = working
	return updated, nil
}

// BulkUpsert implements [Store.BulkUpsert]. All entities persist together or
// none do — the in-memory map is mutated on a working copy and only swapped
// in after a successful write.
func (fs *FileStore) BulkUpsert(ctx context.Context, backendID string, entityIDs []string, patch EntityPatch) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	rec, ok := fs.backends[backendID]
	if !ok {
		return ErrNotFound
	}

	working := rec.clone()
	for _, entityID := range entityIDs {
		working.DeviceMappings[entityID] = applyPatch(working.DeviceMappings[entityID], patch)
	}
	working.UpdatedAt = time.Now().UTC()

	if err := fs.persistLocked(working); err != nil {
		return fmt.Errorf("mapping: bulk_upsert %q: %w", backendID, err)
	}
	fs.backends[backendID] = working
	return nil
}

// AddDeviceType implements [Store.AddDeviceType].
func (fs *FileStore) AddDeviceType(ctx context.Context, backendID, label string) error {
	return fs.addVocabulary(backendID, label, func(rec *Record) *[]string { return &rec.DeviceTypes })
}

// AddLocation implements [Store.AddLocation].
func (fs *FileStore) AddLocation(ctx context.Context, backendID, label string) error {
	return fs.addVocabulary(backendID, label, func(rec *Record) *[]string { return &rec.Locations })
}

func (fs *FileStore) addVocabulary(backendID, label string, field func(*Record) *[]string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	rec, ok := fs.backends[backendID]
	if !ok {
		return ErrNotFound
	}

	slice := field(&rec)
	for _, existing := range *slice {
		if strings.EqualFold(existing, label) {
			return nil // no-op: already present, case-insensitively
		}
	}
	*slice = append(*slice, label)
	rec.UpdatedAt = time.Now().UTC()

	if err := fs.persistLocked(rec); err != nil {
		return fmt.Errorf("mapping: add vocabulary %q to %q: %w", label, backendID, err)
	}
	fs.backends[backendID] = rec
	return nil
}

// ValidateMappings implements [Store.ValidateMappings].
func (fs *FileStore) ValidateMappings(ctx context.Context, backendID string) ([]Conflict, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	rec, ok := fs.backends[backendID]
	if !ok {
		return nil, ErrNotFound
	}

	type key struct{ deviceType, location string }
	claims := make(map[key][]string)
	for entityID, m := range rec.DeviceMappings {
		if !m.Enabled || !m.Complete() {
			continue
		}
		k := key{m.DeviceType, m.Location}
		claims[k] = append(claims[k], entityID)
	}

	var conflicts []Conflict
	for k, ids := range claims {
		if len(ids) > 1 {
			sort.Strings(ids)
			conflicts = append(conflicts, Conflict{DeviceType: k.deviceType, Location: k.location, EntityIDs: ids})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].DeviceType != conflicts[j].DeviceType {
			return conflicts[i].DeviceType < conflicts[j].DeviceType
		}
		return conflicts[i].Location < conflicts[j].Location
	})
	return conflicts, nil
}

// Delete implements [Store.Delete].
func (fs *FileStore) Delete(ctx context.Context, backendID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.backends[backendID]; !ok {
		return ErrNotFound
	}
	if err := os.Remove(fs.pathFor(backendID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("mapping: delete %q: %w", backendID, err)
	}
	delete(fs.backends, backendID)
	return nil
}

// persistLocked writes rec to disk atomically. Callers must hold fs.mu.
func (fs *FileStore) persistLocked(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return atomicfile.WriteFile(fs.pathFor(rec.ID), data, 0o644)
}

// applyPatch merges patch onto base, preserving OriginalName and Domain
// when patch leaves them nil, per spec.md's upsert_entity contract.
func applyPatch(base DeviceMapping, patch EntityPatch) DeviceMapping {
	if patch.Enabled != nil {
		base.Enabled = *patch.Enabled
	}
	if patch.DeviceType != nil {
		base.DeviceType = *patch.DeviceType
	}
	if patch.Location != nil {
		base.Location = *patch.Location
	}
	if patch.OriginalName != nil {
		base.OriginalName = *patch.OriginalName
	}
	if patch.Domain != nil {
		base.Domain = *patch.Domain
	}
	return base
}
