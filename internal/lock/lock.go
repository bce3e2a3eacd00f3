// Package lock implements the Throttle + Lock component: two independent
// gates that reject too-frequent triggers and serialize concurrent
// triggers on the same host.
//
// New relative to the teacher (a TUI owns its terminal; only one instance
// runs at a time by construction). Grounded on the same
// atomic-create-then-read idiom the teacher's internal/config/config.go
// uses for durable writes, applied to a tiny {pid, timestamp} document
// used as a mutex rather than a value store.
package lock

import (
	"encoding/json"
	"os"
	"time"
)

// ThrottleWindow is the cooldown that short-circuits a trigger arriving
// too soon after the last successful run. Not a lock -- an optimization.
const ThrottleWindow = 30 * time.Second

// StaleAfter is how old a lock file's embedded timestamp may be before a
// contender is allowed to reclaim it, guarding against a permanent hang
// left by a crashed process.
const StaleAfter = 10 * time.Second

// AcquireBudget bounds how long a process will retry acquiring the lock
// before giving up.
const AcquireBudget = 1 * time.Second

// RetryInterval is the pause between lock-acquisition attempts.
const RetryInterval = 50 * time.Millisecond

// Throttled reports whether now is within ThrottleWindow of
// lastRunTimestamp (epoch-ms). A throttled trigger exits silently with
// success -- it is not an error, it is the explicit coordination
// semantic (spec.md §4.F).
func Throttled(lastRunTimestamp int64, now time.Time) bool {
	if lastRunTimestamp == 0 {
		return false
	}
	last := time.UnixMilli(lastRunTimestamp)
	return now.Sub(last) < ThrottleWindow
}

// payload is the on-disk shape of the lock file.
type payload struct {
	PID       int   `json:"pid"`
	Timestamp int64 `json:"timestamp"`
}

// FileLock is an exclusive-create lock file at Path.
type FileLock struct {
	Path string

	// now and sleep are overridable for deterministic tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// New returns a FileLock rooted at path.
func New(path string) *FileLock {
	return &FileLock{Path: path, now: time.Now, sleep: time.Sleep}
}

// Acquire attempts to exclusively create the lock file, retrying on
// contention within AcquireBudget at RetryInterval. A lock whose embedded
// timestamp is older than StaleAfter is considered abandoned by a
// crashed process and is reclaimed. Acquire returns false, without error,
// if the budget is exhausted -- lock contention is not an error
// (spec.md §4.F).
func (l *FileLock) Acquire() bool {
	deadline := l.now().Add(AcquireBudget)
	for {
		if l.tryCreate() {
			return true
		}
		if l.reclaimIfStale() {
			continue
		}
		if l.now().After(deadline) {
			return false
		}
		l.sleep(RetryInterval)
	}
}

func (l *FileLock) tryCreate() bool {
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return false
	}
	defer f.Close()

	p := payload{PID: os.Getpid(), Timestamp: l.now().UnixMilli()}
	enc := json.NewEncoder(f)
	if err := enc.Encode(p); err != nil {
		os.Remove(l.Path)
		return false
	}
	return true
}

// reclaimIfStale deletes the lock file if it is older than StaleAfter,
// reporting whether it did so. A subsequent tryCreate attempt follows.
func (l *FileLock) reclaimIfStale() bool {
	f, err := os.Open(l.Path)
	if err != nil {
		return false
	}
	var p payload
	decErr := json.NewDecoder(f).Decode(&p)
	f.Close()
	if decErr != nil {
		// Unreadable lock content: treat conservatively as not stale
		// rather than racing a peer that is mid-write.
		return false
	}

	age := l.now().Sub(time.UnixMilli(p.Timestamp))
	if age <= StaleAfter {
		return false
	}
	return os.Remove(l.Path) == nil
}

// Release deletes the lock file. Safe to call even if the lock was never
// acquired by this process; it is invoked on every exit path, including
// the fatal one, so a crash does not leave a permanent lock beyond
// StaleAfter (spec.md §4.H).
func (l *FileLock) Release() {
	os.Remove(l.Path)
}
