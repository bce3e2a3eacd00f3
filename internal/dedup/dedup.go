// Package dedup implements the Dedup Index: an O(1) fingerprint
// membership test scoped per UTC day, bounded by a retention window.
//
// Grounded on the teacher's internal/parser/dedup.go seen-set pattern
// (map[string]struct{}), generalized from one flat set keyed by
// MessageID:RequestID to a two-level day_key -> fingerprint set keyed by
// the SHA-256 fingerprint, with the retention prune a dashboard never
// needed.
package dedup

import (
	"sort"
	"time"
)

// RetentionDays bounds how long a fingerprint is remembered.
const RetentionDays = 30

// Index is a day_key -> fingerprint-set mapping. The zero value is ready
// to use.
type Index struct {
	days map[string]map[string]struct{}
}

// NewIndex returns an empty Dedup Index.
func NewIndex() *Index {
	return &Index{days: make(map[string]map[string]struct{})}
}

// FromSerialized rebuilds an Index from the persisted day_key -> ordered
// fingerprint list form (Scan State's recentHashes).
func FromSerialized(serialized map[string][]string) *Index {
	idx := NewIndex()
	for day, fps := range serialized {
		set := make(map[string]struct{}, len(fps))
		for _, fp := range fps {
			set[fp] = struct{}{}
		}
		idx.days[day] = set
	}
	return idx
}

// Serialize converts the Index back to the day_key -> ordered fingerprint
// list form for persistence. Insertion order need not be preserved across
// reload, so the lists are emitted in sorted order for determinism.
func (idx *Index) Serialize() map[string][]string {
	out := make(map[string][]string, len(idx.days))
	for day, set := range idx.days {
		list := make([]string, 0, len(set))
		for fp := range set {
			list = append(list, fp)
		}
		sort.Strings(list)
		out[day] = list
	}
	return out
}

// Contains reports whether fingerprint was previously inserted under
// dayKey, in O(1).
func (idx *Index) Contains(dayKey, fingerprint string) bool {
	set, ok := idx.days[dayKey]
	if !ok {
		return false
	}
	_, ok = set[fingerprint]
	return ok
}

// Insert records fingerprint under dayKey, in O(1).
func (idx *Index) Insert(dayKey, fingerprint string) {
	if idx.days == nil {
		idx.days = make(map[string]map[string]struct{})
	}
	set, ok := idx.days[dayKey]
	if !ok {
		set = make(map[string]struct{})
		idx.days[dayKey] = set
	}
	set[fingerprint] = struct{}{}
}

// Prune drops every day_key strictly older than (now - RetentionDays),
// bounding index memory at roughly RetentionDays * records/day
// fingerprints. Call on commit.
func (idx *Index) Prune(now time.Time) {
	cutoff := now.UTC().AddDate(0, 0, -RetentionDays).Format("2006-01-02")
	for day := range idx.days {
		if day < cutoff {
			delete(idx.days, day)
		}
	}
}

// Len returns the number of distinct day_key buckets currently tracked.
func (idx *Index) Len() int {
	return len(idx.days)
}
