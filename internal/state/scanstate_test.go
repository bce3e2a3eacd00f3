package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/scanreader"
)

func TestStore_LoadDefaultsWhenAbsent(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "stats-state.json"))
	st := store.Load()
	if st.Version != CurrentSchemaVersion {
		t.Errorf("Version = %d, want %d", st.Version, CurrentSchemaVersion)
	}
	if st.FileOffsets == nil || st.RecentHashes == nil {
		t.Error("expected default state to have initialized maps")
	}
}

func TestStore_CommitThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats-state.json")
	store := NewStore(path)

	st := DefaultScanState()
	st.LastRunTimestamp = 1234
	st.FileOffsets["/log.jsonl"] = scanreader.Offset{ByteOffset: 10, Size: 10}
	st.RecentHashes["2026-02-19"] = []string{"abc"}

	if err := store.Commit(st); err != nil {
		t.Fatal(err)
	}

	loaded := store.Load()
	if loaded.LastRunTimestamp != 1234 {
		t.Errorf("LastRunTimestamp = %d, want 1234", loaded.LastRunTimestamp)
	}
	if loaded.FileOffsets["/log.jsonl"].ByteOffset != 10 {
		t.Error("expected file offset to round-trip")
	}
}

func TestStore_CorruptFileFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats-state.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0600); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path)
	st := store.Load()
	if st.Version != CurrentSchemaVersion {
		t.Error("expected corrupt file to fall back to default state")
	}
}

func TestStore_MigratesOldVersionNumerically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats-state.json")
	store := NewStore(path)

	// Version 3 is a prior schema and must migrate forward to
	// CurrentSchemaVersion. The numeric-versus-string ordering case (10
	// against 4) is covered by TestNeedsMigration_NumericNotLexicographic.
	old := ScanState{Version: 3}
	if err := store.Commit(old); err != nil {
		t.Fatal(err)
	}

	loaded := store.Load()
	if loaded.Version != CurrentSchemaVersion {
		t.Errorf("Version = %d, want %d after migration", loaded.Version, CurrentSchemaVersion)
	}
	if loaded.FileOffsets == nil || loaded.RecentHashes == nil {
		t.Error("expected migration to initialize missing sub-fields")
	}
}

func TestNeedsMigration_NumericNotLexicographic(t *testing.T) {
	if needsMigration(10) {
		t.Error("version 10 must not be treated as older than version 4")
	}
	if !needsMigration(3) {
		t.Error("version 3 must be treated as older than version 4")
	}
}

func TestStore_CommitIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats-state.json")
	store := NewStore(path)

	st := DefaultScanState()
	st.LastRunTimestamp = 42
	if err := store.Commit(st); err != nil {
		t.Fatal(err)
	}

	// No stray temp files should remain in the directory after commit.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != filepath.Base(path) {
		t.Errorf("expected only %s in directory, got %v", filepath.Base(path), entries)
	}
}
