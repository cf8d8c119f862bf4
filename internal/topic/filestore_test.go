package topic_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/oraclab/oraccore/internal/topic"
)

func newStore(t *testing.T) *topic.FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topics.json")
	s, err := topic.NewFileStore(path, 35*time.Second, 70*time.Second)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestNewFileStore_SeedsGeneralTopic(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	tp, err := s.Get(context.Background(), topic.GeneralTopicID)
	if err != nil {
		t.Fatalf("Get(general): %v", err)
	}
	if tp.AutoDiscovered {
		t.Error("general topic should not be marked auto_discovered")
	}
}

func TestGetOrAutocreate_CreatesOnFirstUse(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	tp, err := s.GetOrAutocreate(context.Background(), "lounge")
	if err != nil {
		t.Fatalf("GetOrAutocreate: %v", err)
	}
	if !tp.AutoDiscovered {
		t.Error("expected AutoDiscovered=true for a newly created topic")
	}

	again, err := s.GetOrAutocreate(context.Background(), "lounge")
	if err != nil {
		t.Fatalf("second GetOrAutocreate: %v", err)
	}
	if again.FirstSeen != tp.FirstSeen {
		t.Error("second GetOrAutocreate should return the same record, not recreate it")
	}
}

func TestDelete_RejectsGeneralTopic(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	if err := s.Delete(context.Background(), topic.GeneralTopicID); err != topic.ErrGeneralUndeletable {
		t.Errorf("Delete(general) = %v, want ErrGeneralUndeletable", err)
	}
}

func TestUpdateHeartbeat_NeverTouchesConfigurationFields(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.GetOrAutocreate(ctx, "lounge"); err != nil {
		t.Fatalf("GetOrAutocreate: %v", err)
	}
	if _, err := s.LinkBackend(ctx, "lounge", "ha_1"); err != nil {
		t.Fatalf("LinkBackend: %v", err)
	}
	if _, err := s.Update(ctx, "lounge", topic.Patch{
		Name:      "Lounge",
		Enabled:   true,
		Model:     "model-a",
		BackendID: "ha_1",
		Settings:  topic.Settings{SystemPrompt: "be terse"},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	before, err := s.Get(ctx, "lounge")
	if err != nil {
		t.Fatalf("Get before heartbeat: %v", err)
	}

	updated, err := s.UpdateHeartbeat(ctx, "lounge", topic.HeartbeatFields{
		WakeWord: "computer", TriggerCount: 7, Now: time.Now(),
	})
	if err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	if updated.BackendID != before.BackendID {
		t.Errorf("BackendID changed by heartbeat update: before=%q after=%q", before.BackendID, updated.BackendID)
	}
	if updated.Model != before.Model {
		t.Errorf("Model changed by heartbeat update: before=%q after=%q", before.Model, updated.Model)
	}
	if updated.Settings.SystemPrompt != before.Settings.SystemPrompt {
		t.Error("Settings changed by heartbeat update")
	}
	if updated.Grammar != before.Grammar {
		t.Error("Grammar changed by heartbeat update")
	}
	if updated.Heartbeat.WakeWord != "computer" || updated.Heartbeat.TriggerCount != 7 {
		t.Errorf("heartbeat fields not applied: %+v", updated.Heartbeat)
	}
}

func TestUpdateHeartbeat_AutocreatesUnknownTopic(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	tp, err := s.UpdateHeartbeat(context.Background(), "kitchen", topic.HeartbeatFields{
		WakeWord: "computer", TriggerCount: 1, Now: time.Now(),
	})
	if err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}
	if tp.Heartbeat.TriggerCount != 1 {
		t.Errorf("TriggerCount = %d, want 1", tp.Heartbeat.TriggerCount)
	}
}

func TestLinkBackend_DisablesStaticGrammar(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.GetOrAutocreate(ctx, "lounge"); err != nil {
		t.Fatalf("GetOrAutocreate: %v", err)
	}
	if _, err := s.Update(ctx, "lounge", topic.Patch{
		Grammar: topic.Grammar{Enabled: true, File: "static.gbnf"},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	tp, err := s.LinkBackend(ctx, "lounge", "ha_1")
	if err != nil {
		t.Fatalf("LinkBackend: %v", err)
	}
	if tp.Grammar.Enabled {
		t.Error("expected static grammar to be disabled once a backend is linked")
	}
}

func TestReload_PersistsAcrossRestart(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "topics.json")
	ctx := context.Background()

	s1, err := topic.NewFileStore(path, 35*time.Second, 70*time.Second)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := s1.GetOrAutocreate(ctx, "lounge"); err != nil {
		t.Fatalf("GetOrAutocreate: %v", err)
	}

	s2, err := topic.NewFileStore(path, 35*time.Second, 70*time.Second)
	if err != nil {
		t.Fatalf("reload NewFileStore: %v", err)
	}
	if _, err := s2.Get(ctx, "lounge"); err != nil {
		t.Fatalf("lounge did not survive reload: %v", err)
	}
}

func TestDeriveStatus_Thresholds(t *testing.T) {
	t.Parallel()
	now := time.Now()
	active := 35 * time.Second
	idle := 70 * time.Second

	if s := topic.DeriveStatus(now.Add(-10*time.Second), now, active, idle); s != topic.StatusActive {
		t.Errorf("got %q, want active", s)
	}
	if s := topic.DeriveStatus(now.Add(-50*time.Second), now, active, idle); s != topic.StatusIdle {
		t.Errorf("got %q, want idle", s)
	}
	if s := topic.DeriveStatus(now.Add(-90*time.Second), now, active, idle); s != topic.StatusStale {
		t.Errorf("got %q, want stale", s)
	}
}
