// Package app orchestrates the phase-based map-tracking flow: capture a
// pre snapshot, capture a post snapshot, diff and value the loot, and fold
// the result exactly once into the session ledger.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bonebunny/lootledger/internal/adapters/maplog"
	"github.com/bonebunny/lootledger/internal/adapters/runlog"
	"github.com/bonebunny/lootledger/internal/domain/diff"
	"github.com/bonebunny/lootledger/internal/domain/item"
	"github.com/bonebunny/lootledger/internal/domain/session"
	"github.com/bonebunny/lootledger/internal/domain/topdrops"
	"github.com/bonebunny/lootledger/internal/domain/valuation"
	"github.com/bonebunny/lootledger/internal/notify"
	"github.com/bonebunny/lootledger/internal/projection"
	"github.com/bonebunny/lootledger/pkg/logger"
	"github.com/bonebunny/lootledger/pkg/metrics"
)

// Snapshotter captures throttled inventory snapshots.
type Snapshotter interface {
	Capture(ctx context.Context, kind item.Kind) (item.Snapshot, error)
}

// Valuer prices a list of records.
type Valuer interface {
	Valuate(ctx context.Context, items []item.Record) (valuation.Result, error)
}

// VarSink consumes the flat variable bag; overlay and console displays
// implement it.
type VarSink interface {
	UpdateVars(vars projection.Vars)
}

// unitMeta is the metadata attached to the in-flight unit.
type unitMeta struct {
	name          string
	level         int
	seed          int64
	tier          int
	modifierCount int
	source        string
}

func placeholderMeta() unitMeta {
	return unitMeta{name: "Unknown Map", source: "none"}
}

// Flow is the run flow controller. One mutex serializes every entry point;
// hotkeys, HTTP triggers, and the auto-detect watcher all funnel through
// the same methods, so the before-capture and commit of a unit can never
// interleave with another unit's.
type Flow struct {
	mu sync.Mutex

	snapshots Snapshotter
	valuer    Valuer
	ledger    *session.Ledger
	drops     *topdrops.Tracker

	runs      *runlog.Log
	sessions  *runlog.Log
	notifiers []notify.Notifier
	sinks     []VarSink
	readMeta  func() (maplog.Info, error)

	character string
	now       func() time.Time
	log       logger.Logger

	// In-flight unit. preSnapshot non-nil means PreCaptured.
	preSnapshot *item.Snapshot
	unitStart   time.Time
	meta        unitMeta

	// Last committed unit, kept for idle variable-bag reads.
	lastUnit   *projection.Unit
	lastBefore session.Snapshot
}

// NewFlow wires the controller. The ledger and tracker are owned by the
// caller so their lifetime spans flow restarts.
func NewFlow(snapshots Snapshotter, valuer Valuer, ledger *session.Ledger, drops *topdrops.Tracker, character string, opts ...Option) *Flow {
	f := &Flow{
		snapshots: snapshots,
		valuer:    valuer,
		ledger:    ledger,
		drops:     drops,
		character: character,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Get().Named("flow")
	}
	return f
}

// StartSession begins a new ledger session, resets the drop tracker, logs
// the lifecycle event, and announces the session.
func (f *Flow) StartSession(ctx context.Context) (session.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startSessionLocked(ctx)
}

func (f *Flow) startSessionLocked(ctx context.Context) (session.Info, error) {
	info, err := f.ledger.Start()
	if err != nil {
		return session.Info{}, err
	}
	f.drops.Reset()
	f.preSnapshot = nil
	f.lastUnit = nil
	f.lastBefore = session.Snapshot{}

	f.appendSessionEvent(ctx, runlog.SessionEvent{
		EventType: "session_start",
		SessionID: info.SessionID,
		TS:        f.now().Format(time.RFC3339),
		Character: f.character,
	})

	vars := projection.Build(f.character, info, session.Snapshot{}, f.ledger.Snapshot(), nil, f.drops)
	notify.Dispatch(ctx, notify.NewSession, vars, f.notifiers...)
	f.pushVars(vars)

	f.log.Info(ctx, "session started", logger.String("session_id", info.SessionID))
	return info, nil
}

// EndSession closes the active session and logs its final counters.
func (f *Flow) EndSession(ctx context.Context) (session.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endSessionLocked(ctx)
}

func (f *Flow) endSessionLocked(ctx context.Context) (session.Snapshot, error) {
	info := f.ledger.Info()
	final, err := f.ledger.End()
	if err != nil {
		return session.Snapshot{}, err
	}

	f.appendSessionEvent(ctx, runlog.SessionEvent{
		EventType:      "session_end",
		SessionID:      info.SessionID,
		TS:             f.now().Format(time.RFC3339),
		Character:      f.character,
		RuntimeSeconds: final.RuntimeSeconds,
		TotalValue:     final.TotalValue,
		TotalMaps:      final.MapsCompleted,
	})

	vars := projection.Build(f.character, info, final, final, f.lastUnit, f.drops)
	notify.Dispatch(ctx, notify.SessionEnd, vars, f.notifiers...)

	f.log.Info(ctx, "session ended",
		logger.String("session_id", info.SessionID),
		logger.Int("maps", final.MapsCompleted),
		logger.Float64("total_value", final.TotalValue),
	)
	return final, nil
}

// NewSession is the session-boundary handler: it ends the active session
// if there is one, then starts a fresh one.
func (f *Flow) NewSession(ctx context.Context) (session.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ledger.State() == session.StateActive {
		if _, err := f.endSessionLocked(ctx); err != nil {
			return session.Info{}, err
		}
	}
	return f.startSessionLocked(ctx)
}

// BeginUnit runs the four-phase pre-map flow: snapshot, metadata parse,
// in-flight state update, announcement. Calling it again while a unit is
// already in flight restarts that unit; the discarded pre snapshot is
// logged at warning level.
func (f *Flow) BeginUnit(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	restarted := f.preSnapshot != nil
	prevMap, prevItems := f.meta.name, 0
	if restarted {
		prevItems = f.preSnapshot.ItemCount()
	}

	// Phase 1: pre snapshot. A failure here keeps any in-flight unit as it
	// was, so the restart is only announced once the capture succeeds.
	snap, err := f.snapshots.Capture(ctx, item.KindPre)
	if err != nil {
		return err
	}
	if restarted {
		f.log.Warn(ctx, "restarting in-flight unit; previous pre snapshot discarded",
			logger.String("map", prevMap),
			logger.Int("items", prevItems),
		)
	}

	// Phase 2: metadata, best-effort.
	meta := placeholderMeta()
	if f.readMeta != nil {
		info, merr := f.readMeta()
		if merr != nil {
			f.log.Warn(ctx, "map metadata unavailable; proceeding with placeholder", logger.Error(merr))
		} else {
			meta = unitMeta{
				name:   info.Name,
				level:  info.Level,
				seed:   info.Seed,
				source: "client_log",
			}
		}
	}

	// Phase 3: in-flight state.
	f.preSnapshot = &snap
	f.unitStart = f.now()
	f.meta = meta

	// Phase 4: announce.
	unit := &projection.Unit{
		MapName:      meta.name,
		MapLevel:     meta.level,
		MapSeed:      meta.seed,
		WaystoneTier: meta.tier,
	}
	after := f.ledger.Snapshot()
	vars := projection.Build(f.character, f.ledger.Info(), f.lastBefore, after, unit, f.drops)
	notify.Dispatch(ctx, notify.PreMap, vars, f.notifiers...)
	f.pushVars(vars)

	f.log.Info(ctx, "unit begun",
		logger.String("map", meta.name),
		logger.Int("level", meta.level),
		logger.Int("pre_items", snap.ItemCount()),
	)
	return nil
}

// EndUnit runs the nine-phase post-map flow against a live post snapshot.
func (f *Flow) EndUnit(ctx context.Context) error {
	return f.endUnit(ctx, nil)
}

// EndUnitSimulated runs the post-map flow with a fabricated post snapshot,
// bypassing the inventory API. Used by the simulate command and tests of
// the full flow.
func (f *Flow) EndUnitSimulated(ctx context.Context, items []item.Record) error {
	snap := item.NewSnapshot(items, item.KindPost, f.now())
	return f.endUnit(ctx, &snap)
}

func (f *Flow) endUnit(ctx context.Context, simulated *item.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Precondition: a pre snapshot must exist. No state is touched when
	// it does not.
	if f.preSnapshot == nil {
		return ErrNoActiveUnit
	}

	// Phase 1: post snapshot. Abort on failure; the unit stays in flight
	// so the user can retry.
	var post item.Snapshot
	if simulated != nil {
		post = *simulated
	} else {
		var err error
		post, err = f.snapshots.Capture(ctx, item.KindPost)
		if err != nil {
			metrics.RecordUnitAborted("snapshot")
			return err
		}
	}

	// Phase 2: diff.
	diffResult, err := diff.Compute(*f.preSnapshot, post)
	if err != nil {
		metrics.RecordUnitAborted("diff")
		return fmt.Errorf("diffing snapshots: %w", err)
	}

	// Phase 3: valuation. Only added items count toward map profit;
	// removed items are reported but never subtracted.
	valued, err := f.valuer.Valuate(ctx, diffResult.Added)
	if err != nil {
		metrics.RecordUnitAborted("valuation")
		return fmt.Errorf("valuing loot: %w", err)
	}

	runtimeSeconds := f.now().Sub(f.unitStart).Seconds()
	if f.unitStart.IsZero() {
		runtimeSeconds = 0
	}

	// Phases 4+5: baseline capture and commit, one uninterruptible step.
	// CommitUnit captures the before snapshot internally, and the drop
	// tracker update happens under the same flow mutex before anything
	// downstream observes the new state.
	before, after, err := f.ledger.CommitUnit(valued.TotalMajor)
	if err != nil {
		metrics.RecordUnitAborted("commit")
		return fmt.Errorf("committing unit: %w", err)
	}
	f.drops.RecordUnit(dropsFromRows(valued.Rows), topdrops.UnitMeta{
		Name:           f.meta.name,
		Tier:           f.meta.tier,
		Value:          valued.TotalMajor,
		RuntimeSeconds: runtimeSeconds,
	})

	metrics.RecordUnitCompleted(valued.TotalMajor, runtimeSeconds)
	metrics.UpdateSession(after.MapsCompleted, after.TotalValue, after.ValuePerHour)

	// Everything below is best-effort reporting of an already-committed
	// fact; failures are logged, never rolled back.

	unit := &projection.Unit{
		MapName:        f.meta.name,
		MapLevel:       f.meta.level,
		MapSeed:        f.meta.seed,
		WaystoneTier:   f.meta.tier,
		ModifierCount:  f.meta.modifierCount,
		Value:          valued.TotalMajor,
		RuntimeSeconds: runtimeSeconds,
	}

	// Phase 6: notify, comparisons from the before baseline.
	vars := projection.Build(f.character, f.ledger.Info(), before, after, unit, f.drops)
	notify.Dispatch(ctx, notify.PostMap, vars, f.notifiers...)

	// Phase 7: persistent run record with post-commit counters.
	f.appendRunRecord(ctx, diffResult, valued, after, runtimeSeconds)

	// Phase 8: displays and overlays.
	f.pushVars(vars)

	// Phase 9: reset the in-flight unit.
	f.preSnapshot = nil
	f.unitStart = time.Time{}
	f.lastUnit = unit
	f.lastBefore = before
	lastMeta := f.meta
	f.meta = unitMeta{}

	f.log.Info(ctx, "unit completed",
		logger.String("map", lastMeta.name),
		logger.Float64("value", valued.TotalMajor),
		logger.Duration("runtime", time.Duration(runtimeSeconds*float64(time.Second))),
		logger.Int("added", diffResult.AddedCount()),
		logger.Int("removed", diffResult.RemovedCount()),
	)
	return nil
}

// Vars returns the current variable bag for idle reads (overlay page
// loads, console repaints).
func (f *Flow) Vars() projection.Vars {
	f.mu.Lock()
	defer f.mu.Unlock()
	return projection.Build(f.character, f.ledger.Info(), f.lastBefore, f.ledger.Snapshot(), f.lastUnit, f.drops)
}

// InFlight reports whether a unit has a pre snapshot captured.
func (f *Flow) InFlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.preSnapshot != nil
}

func (f *Flow) appendRunRecord(ctx context.Context, d diff.Result, valued valuation.Result, after session.Snapshot, runtimeSeconds float64) {
	if f.runs == nil {
		return
	}
	rec := runlog.RunRecord{
		RunID:     uuid.NewString(),
		SessionID: f.ledger.Info().SessionID,
		TS:        f.now().Format(time.RFC3339),
		Character: f.character,
		Map: runlog.MapDetails{
			Name:          f.meta.name,
			Level:         f.meta.level,
			Seed:          f.meta.seed,
			Tier:          f.meta.tier,
			ModifierCount: f.meta.modifierCount,
			Source:        f.meta.source,
		},
		MapValue:             valued.TotalMajor,
		MapRuntime:           runtimeSeconds,
		AddedCount:           d.AddedCount(),
		RemovedCount:         d.RemovedCount(),
		Added:                aggregate(d.Added),
		Removed:              aggregate(d.Removed),
		SessionMapsCompleted: after.MapsCompleted,
		SessionTotalValue:    after.TotalValue,
	}
	if err := f.runs.Append(rec); err != nil {
		f.log.Error(ctx, "run record append failed", logger.Error(err))
	}
}

func (f *Flow) appendSessionEvent(ctx context.Context, event runlog.SessionEvent) {
	if f.sessions == nil {
		return
	}
	if err := f.sessions.Append(event); err != nil {
		f.log.Error(ctx, "session event append failed", logger.Error(err))
	}
}

func (f *Flow) pushVars(vars projection.Vars) {
	for _, sink := range f.sinks {
		sink.UpdateVars(vars)
	}
}

func dropsFromRows(rows []valuation.Row) []topdrops.Drop {
	out := make([]topdrops.Drop, len(rows))
	for i, row := range rows {
		out[i] = topdrops.Drop{Name: row.Name, Stack: row.Qty, Value: row.MajorTotal}
	}
	return out
}

// aggregate folds raw records into compact per-name summaries for the run
// log.
func aggregate(records []item.Record) []runlog.ItemAggregate {
	index := make(map[string]int, len(records))
	var out []runlog.ItemAggregate
	for _, rec := range records {
		name := rec.Name()
		pos, ok := index[name]
		if !ok {
			pos = len(out)
			index[name] = pos
			out = append(out, runlog.ItemAggregate{Name: name})
		}
		out[pos].Qty += rec.Stack()
	}
	return out
}
