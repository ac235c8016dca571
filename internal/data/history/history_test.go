package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndLoadSnapshots(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := store.SaveSnapshot(Snapshot{
			Timestamp:       base.Add(time.Duration(i) * time.Hour),
			FileCount:       100 + i,
			ModuleCount:     8,
			EdgeCount:       250 + i,
			CycleCount:      1,
			DirectStale:     i,
			PropagatedStale: i * 4,
		})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	all, err := store.LoadSnapshots("", time.Time{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Error("snapshots not ordered oldest first")
		}
	}
	if all[2].FileCount != 102 || all[2].PropagatedStale != 8 {
		t.Errorf("last snapshot = %+v", all[2])
	}
}

func TestLoadSnapshotsSince(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if _, err := store.SaveSnapshot(Snapshot{Timestamp: base.AddDate(0, 0, i), FileCount: i}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := store.LoadSnapshots("default", base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d snapshots since cutoff, want 2", len(recent))
	}
	if recent[0].FileCount != 2 {
		t.Errorf("first retained snapshot = %+v", recent[0])
	}
}

func TestSnapshotDefaultsFilledIn(t *testing.T) {
	store := openTestStore(t)

	runID, err := store.SaveSnapshot(Snapshot{FileCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if runID == "" {
		t.Fatal("expected a generated run id")
	}

	all, err := store.LoadSnapshots("", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d snapshots", len(all))
	}
	if all[0].RunID != runID || all[0].ProjectKey != "default" {
		t.Errorf("snapshot = %+v", all[0])
	}
	if all[0].Timestamp.IsZero() {
		t.Error("timestamp should default to now")
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveSnapshot(Snapshot{FileCount: 7}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	all, err := reopened.LoadSnapshots("", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].FileCount != 7 {
		t.Errorf("reopened history = %+v", all)
	}
}

func TestOpenRejectsDirectory(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatal("expected error for directory path")
	}
}
