package state

import "github.com/houzixiashanxiedaima/claude-stats-agent/internal/scanreader"

// CurrentSchemaVersion is the schema major version this build writes.
// Version comparison on load is numeric, never lexicographic (10 > 4),
// per spec.md §4.D.
const CurrentSchemaVersion = 4

// ScanState is the single canonical persisted document holding dedup
// index, file offsets, run timestamp and schema version.
type ScanState struct {
	Version          int                         `json:"version"`
	LastCleanup      string                      `json:"lastCleanup"`
	LastRunTimestamp int64                       `json:"lastRunTimestamp"`
	FileOffsets      map[string]scanreader.Offset `json:"fileOffsets"`
	RecentHashes     map[string][]string         `json:"recentHashes"`
}

// DefaultScanState returns the zero-value state a first run starts from.
func DefaultScanState() ScanState {
	return ScanState{
		Version:      CurrentSchemaVersion,
		FileOffsets:  make(map[string]scanreader.Offset),
		RecentHashes: make(map[string][]string),
	}
}

// migrate fills in any sub-fields a document from an older schema
// version is missing, and stamps the current version. It is idempotent.
func migrate(s ScanState) ScanState {
	if s.FileOffsets == nil {
		s.FileOffsets = make(map[string]scanreader.Offset)
	}
	if s.RecentHashes == nil {
		s.RecentHashes = make(map[string][]string)
	}
	s.Version = CurrentSchemaVersion
	return s
}

// needsMigration reports whether the persisted version is absent or
// numerically below CurrentSchemaVersion. Numeric, not lexicographic:
// version 10 is newer than version 4.
func needsMigration(version int) bool {
	return version < CurrentSchemaVersion
}

// Store persists the Scan State under one canonical path.
type Store struct {
	Path string
}

// NewStore returns a Store rooted at path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the Scan State, migrating it forward if its version is
// stale and falling back to defaults if the file is absent or corrupt.
// A corrupt file causes the loss of prior history (offsets, dedup index)
// by design -- one-time re-scan follows, and the server is idempotent on
// fingerprint (spec.md §4.D).
func (s *Store) Load() ScanState {
	var st ScanState
	existed, err := readJSON(s.Path, &st)
	if err != nil || !existed {
		return DefaultScanState()
	}
	if needsMigration(st.Version) || st.FileOffsets == nil || st.RecentHashes == nil {
		st = migrate(st)
	}
	return st
}

// Commit atomically persists the Scan State.
func (s *Store) Commit(st ScanState) error {
	return writeAtomic(s.Path, st)
}
