package state

import "github.com/houzixiashanxiedaima/claude-stats-agent/internal/record"

// PendingBuffer is the durable queue of records collected but not yet
// delivered. Ordering need not be preserved across merges, but no record
// may be silently dropped (spec.md §3).
type PendingBuffer struct {
	Records      []record.UsageRecord `json:"records"`
	LastAttempt  int64                `json:"lastAttempt"`
}

// BufferStore persists the Pending Buffer under one canonical path. At
// most one buffer file exists per host (spec.md §4.E invariant).
type BufferStore struct {
	Path string
}

// NewBufferStore returns a BufferStore rooted at path.
func NewBufferStore(path string) *BufferStore {
	return &BufferStore{Path: path}
}

// Load returns the persisted records, or an empty buffer if the file is
// absent or corrupt. A corrupt buffer is discarded rather than
// propagated: data loss here is bounded to one run's worth (spec.md §7).
func (b *BufferStore) Load() PendingBuffer {
	var buf PendingBuffer
	existed, err := readJSON(b.Path, &buf)
	if err != nil || !existed {
		return PendingBuffer{}
	}
	return buf
}

// Clear atomically empties the buffer. The Orchestrator calls this
// immediately after Load so a later run never double-processes a buffer
// it has already consumed (spec.md §4.E invariant).
func (b *BufferStore) Clear() error {
	return b.Replace(PendingBuffer{})
}

// Replace atomically overwrites the buffer contents.
func (b *BufferStore) Replace(buf PendingBuffer) error {
	return writeAtomic(b.Path, buf)
}
