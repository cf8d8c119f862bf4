package sqlitekv

import (
	"testing"
	"time"

	"github.com/oraclab/oraccore/internal/timing"
)

func TestAppend_ThenList(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	cmd := timing.Command{ID: "cmd-1", TopicID: "general", Status: timing.StatusComplete}
	cmd.Stages.CompletedAt = time.Now()
	if err := db.Append(cmd); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := db.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "cmd-1" {
		t.Fatalf("got %+v, want one entry with id cmd-1", got)
	}
}

func TestList_RespectsLimitAndOrder(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		cmd := timing.Command{ID: string(rune('a' + i)), Status: timing.StatusComplete}
		cmd.Stages.CompletedAt = time.Now().Add(time.Duration(i) * time.Second)
		if err := db.Append(cmd); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := db.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("got IDs [%s, %s], want [c, b] (most-recent-first)", got[0].ID, got[1].ID)
	}
}

func TestClear_RemovesAllRows(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	db.Append(timing.Command{ID: "x", Status: timing.StatusComplete})
	db.Append(timing.Command{ID: "y", Status: timing.StatusComplete})

	n, err := db.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}

	got, err := db.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(got) = %d, want 0", len(got))
	}
}

func TestPruneOlderThan_RemovesOnlyStaleRows(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	old := timing.Command{ID: "old", Status: timing.StatusComplete}
	old.Stages.CompletedAt = time.Now().Add(-2 * time.Hour)
	recent := timing.Command{ID: "recent", Status: timing.StatusComplete}
	recent.Stages.CompletedAt = time.Now()

	db.Append(old)
	db.Append(recent)

	n, err := db.PruneOlderThan(time.Now().Add(-1 * time.Hour))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}

	got, _ := db.List(0)
	if len(got) != 1 || got[0].ID != "recent" {
		t.Errorf("got %+v, want only the recent entry", got)
	}
}
