package mapping_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oraclab/oraccore/internal/mapping"
)

func ptr[T any](v T) *T { return &v }

func writeBadFile(path string) error {
	return os.WriteFile(path, []byte("{not json"), 0o644)
}

func TestCreateBackend_SeedsDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := mapping.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	rec, err := store.CreateBackend(ctx, "Home", "homeassistant", map[string]string{"base_url": "http://ha.local"})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if !strings.HasPrefix(rec.ID, "homeassistant_") {
		t.Errorf("id = %q, want prefix homeassistant_", rec.ID)
	}
	if len(rec.DeviceTypes) != len(mapping.DefaultDeviceTypes) {
		t.Errorf("device types = %v, want %v", rec.DeviceTypes, mapping.DefaultDeviceTypes)
	}
	if len(rec.DeviceMappings) != 0 {
		t.Errorf("expected empty device mappings, got %d", len(rec.DeviceMappings))
	}
}

func TestCreateBackend_DuplicateNameAllowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := mapping.NewFileStore(t.TempDir())

	a, err := store.CreateBackend(ctx, "Home", "homeassistant", nil)
	if err != nil {
		t.Fatalf("CreateBackend a: %v", err)
	}
	b, err := store.CreateBackend(ctx, "Home", "homeassistant", nil)
	if err != nil {
		t.Fatalf("CreateBackend b: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("expected distinct ids for duplicate-name backends")
	}
}

func TestUpsertEntity_PreservesOriginalNameAndDomain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := mapping.NewFileStore(t.TempDir())
	rec, _ := store.CreateBackend(ctx, "Home", "homeassistant", nil)

	_, err := store.UpsertEntity(ctx, rec.ID, "light.lounge_lamp", mapping.EntityPatch{
		OriginalName: ptr("Lounge Lamp"),
		Domain:       ptr("light"),
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	m, err := store.UpsertEntity(ctx, rec.ID, "light.lounge_lamp", mapping.EntityPatch{
		Enabled:    ptr(true),
		DeviceType: ptr("lights"),
		Location:   ptr("lounge"),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if m.OriginalName != "Lounge Lamp" || m.Domain != "light" {
		t.Errorf("patch without OriginalName/Domain should preserve them, got %+v", m)
	}
	if !m.Enabled || m.DeviceType != "lights" || m.Location != "lounge" {
		t.Errorf("unexpected mapping after merge: %+v", m)
	}
}

func TestUpsertEntity_EmptyPatchIsNoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := mapping.NewFileStore(t.TempDir())
	rec, _ := store.CreateBackend(ctx, "Home", "homeassistant", nil)

	before, err := store.UpsertEntity(ctx, rec.ID, "light.x", mapping.EntityPatch{
		Enabled: ptr(true), DeviceType: ptr("lights"), Location: ptr("lounge"),
	})
	if err != nil {
		t.Fatalf("seed upsert: %v", err)
	}

	after, err := store.UpsertEntity(ctx, rec.ID, "light.x", mapping.EntityPatch{})
	if err != nil {
		t.Fatalf("no-op upsert: %v", err)
	}
	if before != after {
		t.Errorf("empty patch changed mapping: before=%+v after=%+v", before, after)
	}
}

func TestUpsertEntity_UnknownBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := mapping.NewFileStore(t.TempDir())

	_, err := store.UpsertEntity(ctx, "ghost", "e1", mapping.EntityPatch{})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestBulkUpsert_AppliesToAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := mapping.NewFileStore(t.TempDir())
	rec, _ := store.CreateBackend(ctx, "Home", "homeassistant", nil)

	err := store.BulkUpsert(ctx, rec.ID, []string{"a", "b", "c"}, mapping.EntityPatch{
		Enabled: ptr(true), DeviceType: ptr("lights"), Location: ptr("hall"),
	})
	if err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}

	got, _ := store.Get(ctx, rec.ID)
	if len(got.DeviceMappings) != 3 {
		t.Fatalf("expected 3 mappings, got %d", len(got.DeviceMappings))
	}
	for _, id := range []string{"a", "b", "c"} {
		if m := got.DeviceMappings[id]; m.DeviceType != "lights" || m.Location != "hall" {
			t.Errorf("mapping %q = %+v, want lights/hall", id, m)
		}
	}
}

func TestAddDeviceType_CaseInsensitiveNoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := mapping.NewFileStore(t.TempDir())
	rec, _ := store.CreateBackend(ctx, "Home", "homeassistant", nil)

	if err := store.AddDeviceType(ctx, rec.ID, "LIGHTS"); err != nil {
		t.Fatalf("AddDeviceType: %v", err)
	}
	got, _ := store.Get(ctx, rec.ID)
	countLights := 0
	for _, dt := range got.DeviceTypes {
		if strings.EqualFold(dt, "lights") {
			countLights++
		}
	}
	if countLights != 1 {
		t.Errorf("expected exactly one case-insensitive 'lights' entry, got %d", countLights)
	}
}

func TestValidateMappings_DetectsConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := mapping.NewFileStore(t.TempDir())
	rec, _ := store.CreateBackend(ctx, "Home", "homeassistant", nil)

	_, _ = store.UpsertEntity(ctx, rec.ID, "light.a", mapping.EntityPatch{
		Enabled: ptr(true), DeviceType: ptr("lights"), Location: ptr("lounge"),
	})
	_, _ = store.UpsertEntity(ctx, rec.ID, "light.b", mapping.EntityPatch{
		Enabled: ptr(true), DeviceType: ptr("lights"), Location: ptr("lounge"),
	})
	// Disabled duplicate must not count.
	_, _ = store.UpsertEntity(ctx, rec.ID, "light.c", mapping.EntityPatch{
		Enabled: ptr(false), DeviceType: ptr("lights"), Location: ptr("lounge"),
	})

	conflicts, err := store.ValidateMappings(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ValidateMappings: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d: %+v", len(conflicts), conflicts)
	}
	if len(conflicts[0].EntityIDs) != 2 {
		t.Errorf("expected 2 conflicting entity ids, got %v", conflicts[0].EntityIDs)
	}
}

func TestDelete_RemovesFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store, _ := mapping.NewFileStore(dir)
	rec, _ := store.CreateBackend(ctx, "Home", "homeassistant", nil)

	if err := store.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, rec.ID); err != mapping.ErrNotFound {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if _, err := mapping.NewFileStore(dir); err != nil {
		t.Fatalf("reload after delete: %v", err)
	}
}

func TestReload_PersistsAcrossRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store, _ := mapping.NewFileStore(dir)
	rec, _ := store.CreateBackend(ctx, "Home", "homeassistant", nil)
	_, _ = store.UpsertEntity(ctx, rec.ID, "light.a", mapping.EntityPatch{
		Enabled: ptr(true), DeviceType: ptr("lights"), Location: ptr("lounge"),
	})

	reloaded, err := mapping.NewFileStore(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, err := reloaded.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.DeviceMappings["light.a"].Location != "lounge" {
		t.Errorf("reloaded mapping = %+v", got.DeviceMappings["light.a"])
	}
}

func TestNewFileStore_CorruptFileFailsLoudly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := writeBadFile(filepath.Join(dir, "broken.json")); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	if _, err := mapping.NewFileStore(dir); err == nil {
		t.Fatal("expected error loading corrupt backend file")
	}
}
