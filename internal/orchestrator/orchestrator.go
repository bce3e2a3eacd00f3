// Package orchestrator sequences the Throttle+Lock, Incremental Reader,
// Dedup Index, Delivery Scheduler and State/Buffer Store phases of one
// run, enforcing the invariants of spec.md §4.H.
//
// Grounded on the teacher's cmd/claude-smi/main.go runNoTUI function,
// already a linear pipeline (scan -> dedup -> price -> filter -> emit)
// invoked once per process. The orchestrator keeps that single-pass,
// no-daemon shape and extends it with the throttle/lock/buffer/commit
// steps the dashboard path never needed.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/config"
	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/dedup"
	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/delivery"
	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/lock"
	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/record"
	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/scanreader"
	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/state"
)

// Paths bundles the three shared files under $HOME/.claude/ that the
// engine reads and writes.
type Paths struct {
	StatePath  string
	BufferPath string
	LockPath   string
}

// Orchestrator drives one run of the collection-and-delivery engine.
type Orchestrator struct {
	Config config.Config
	Paths  Paths

	// Roots overrides log-file root discovery; nil means resolve via
	// scanreader.Roots(nil), the production default.
	Roots []string

	Logger *zap.Logger

	// now is overridable for deterministic tests.
	now func() time.Time
}

// New returns an Orchestrator for one run.
func New(cfg config.Config, paths Paths, roots []string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{Config: cfg, Paths: paths, Roots: roots, Logger: logger, now: time.Now}
}

// Run executes one full pass of the engine. It never returns an error to
// the caller: every failure path is logged and survived, per spec.md §7 —
// the process must always exit 0 (spec.md P5).
func (o *Orchestrator) Run(ctx context.Context) {
	if !o.Config.Runnable() {
		o.Logger.Debug("config absent or disabled, exiting")
		return
	}

	stateStore := state.NewStore(o.Paths.StatePath)
	st := stateStore.Load()
	now := o.nowFn()

	if lock.Throttled(st.LastRunTimestamp, now) {
		o.Logger.Debug("throttled, exiting")
		return
	}

	fileLock := lock.New(o.Paths.LockPath)
	if !fileLock.Acquire() {
		o.Logger.Debug("lock contention, exiting")
		return
	}
	defer fileLock.Release()

	bufferStore := state.NewBufferStore(o.Paths.BufferPath)

	// If anything downstream panics after the buffer has been cleared
	// (step 5) but before survivors are written back (step 8), recover
	// and re-persist whatever was in flight so it is not silently lost,
	// per spec.md §4.H.
	var inFlight []record.UsageRecord
	bufferTaken := false
	defer func() {
		if r := recover(); r != nil {
			o.Logger.Error("recovered from panic mid-run, re-persisting buffer", zap.Any("panic", r))
			if bufferTaken {
				_ = bufferStore.Replace(state.PendingBuffer{Records: inFlight, LastAttempt: o.nowFn().UnixMilli()})
			}
		}
	}()

	idx := dedup.FromSerialized(st.RecentHashes)

	roots := o.Roots
	if roots == nil {
		roots = scanreader.Roots(nil)
	}
	files := scanreader.DiscoverFiles(roots)

	newOffsets := make(map[string]scanreader.Offset, len(files))
	var collected []record.UsageRecord
	for _, path := range files {
		prior, hadPrior := st.FileOffsets[path]
		res := scanreader.Scan(path, prior, hadPrior)
		if !res.Present {
			// Garbage-collected: the file disappeared between runs.
			continue
		}
		newOffsets[path] = res.Offset
		for _, r := range res.Records {
			if idx.Contains(r.DayKey, r.Fingerprint) {
				continue
			}
			idx.Insert(r.DayKey, r.Fingerprint)
			collected = append(collected, r)
		}
	}
	st.FileOffsets = newOffsets

	buffered := bufferStore.Load()
	if err := bufferStore.Clear(); err != nil {
		o.Logger.Error("clearing pending buffer failed", zap.Error(err))
	}

	combined := make([]record.UsageRecord, 0, len(buffered.Records)+len(collected))
	combined = append(combined, buffered.Records...)
	combined = append(combined, collected...)
	inFlight = combined
	bufferTaken = true

	if len(combined) == 0 {
		o.commit(stateStore, st, idx, now)
		return
	}

	scheduler := delivery.New(o.Config.ServerURL, o.Config.Username)
	_, unsent := scheduler.Deliver(ctx, combined)
	inFlight = unsent

	if len(unsent) > 0 {
		if err := bufferStore.Replace(state.PendingBuffer{Records: unsent, LastAttempt: now.UnixMilli()}); err != nil {
			o.Logger.Error("persisting survivors to buffer failed", zap.Error(err))
		}
	}

	o.commit(stateStore, st, idx, now)
}

func (o *Orchestrator) commit(store *state.Store, st state.ScanState, idx *dedup.Index, now time.Time) {
	idx.Prune(now)
	st.RecentHashes = idx.Serialize()
	st.LastRunTimestamp = now.UnixMilli()
	st.LastCleanup = now.UTC().Format(time.RFC3339)
	if err := store.Commit(st); err != nil {
		o.Logger.Error("state commit failed", zap.Error(err))
	}
}

func (o *Orchestrator) nowFn() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now()
}
