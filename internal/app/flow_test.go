package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bonebunny/lootledger/internal/adapters/runlog"
	"github.com/bonebunny/lootledger/internal/app"
	"github.com/bonebunny/lootledger/internal/domain/item"
	"github.com/bonebunny/lootledger/internal/domain/session"
	"github.com/bonebunny/lootledger/internal/domain/topdrops"
	"github.com/bonebunny/lootledger/internal/domain/valuation"
	"github.com/bonebunny/lootledger/internal/projection"
	. "github.com/smartystreets/goconvey/convey"
)

// scriptedSnapshots replays queued item lists, one per capture.
type scriptedSnapshots struct {
	queue [][]item.Record
	err   error
	now   func() time.Time
}

func (s *scriptedSnapshots) Capture(ctx context.Context, kind item.Kind) (item.Snapshot, error) {
	if s.err != nil {
		return item.Snapshot{}, s.err
	}
	var items []item.Record
	if len(s.queue) > 0 {
		items = s.queue[0]
		s.queue = s.queue[1:]
	}
	return item.NewSnapshot(items, kind, s.now()), nil
}

// flatValuer prices every item at a fixed per-stack unit value.
type flatValuer struct {
	unitValue float64
	err       error
}

func (v *flatValuer) Valuate(ctx context.Context, items []item.Record) (valuation.Result, error) {
	if v.err != nil {
		return valuation.Result{}, v.err
	}
	var result valuation.Result
	for _, rec := range items {
		total := v.unitValue * float64(rec.Stack())
		result.Rows = append(result.Rows, valuation.Row{
			Name:       rec.Name(),
			Qty:        rec.Stack(),
			MajorEach:  v.unitValue,
			MajorTotal: total,
		})
		result.TotalMajor += total
	}
	return result, nil
}

// varRecorder remembers every pushed bag.
type varRecorder struct {
	pushes []projection.Vars
}

func (r *varRecorder) UpdateVars(vars projection.Vars) {
	r.pushes = append(r.pushes, vars)
}

func (r *varRecorder) last() projection.Vars {
	if len(r.pushes) == 0 {
		return nil
	}
	return r.pushes[len(r.pushes)-1]
}

type flowFixture struct {
	flow      *app.Flow
	snapshots *scriptedSnapshots
	valuer    *flatValuer
	sink      *varRecorder
	clock     *fakeClock
	runPath   string
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFixture(t *testing.T) *flowFixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC)}
	snapshots := &scriptedSnapshots{now: clock.Now}
	valuer := &flatValuer{unitValue: 10}
	sink := &varRecorder{}
	runPath := filepath.Join(t.TempDir(), "runs.jsonl")
	runs, err := runlog.NewLog(runPath)
	if err != nil {
		t.Fatalf("run log: %v", err)
	}

	flow := app.NewFlow(snapshots, valuer,
		session.NewLedger(session.WithClock(clock.Now)),
		topdrops.NewTracker(),
		"BoneBunny",
		app.WithRunLog(runs),
		app.WithVarSinks(sink),
		app.WithClock(clock.Now),
	)
	return &flowFixture{
		flow:      flow,
		snapshots: snapshots,
		valuer:    valuer,
		sink:      sink,
		clock:     clock,
		runPath:   runPath,
	}
}

func TestFlowUnitCycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given an active session", t, func() {
		fx := newFixture(t)
		_, err := fx.flow.StartSession(ctx)
		So(err, ShouldBeNil)

		Convey("When ending a unit that was never begun", func() {
			err := fx.flow.EndUnit(ctx)

			Convey("Then it refuses and the ledger is untouched", func() {
				So(errors.Is(err, app.ErrNoActiveUnit), ShouldBeTrue)
				So(fx.flow.Vars()["session_maps_completed"], ShouldEqual, 0)
			})
		})

		Convey("When a full begin/end cycle runs", func() {
			fx.snapshots.queue = [][]item.Record{
				{{ID: "a", TypeName: "Chaos Orb", StackSize: 5}},
				{{ID: "a", TypeName: "Chaos Orb", StackSize: 8}},
			}

			So(fx.flow.BeginUnit(ctx), ShouldBeNil)
			So(fx.flow.InFlight(), ShouldBeTrue)
			fx.clock.Advance(5 * time.Minute)
			So(fx.flow.EndUnit(ctx), ShouldBeNil)

			Convey("Then exactly the loot delta is committed", func() {
				vars := fx.flow.Vars()
				So(vars["session_maps_completed"], ShouldEqual, 1)
				So(vars["session_total_value"], ShouldEqual, 30.0)
			})

			Convey("Then the unit leaves the in-flight state", func() {
				So(fx.flow.InFlight(), ShouldBeFalse)
				So(errors.Is(fx.flow.EndUnit(ctx), app.ErrNoActiveUnit), ShouldBeTrue)
			})

			Convey("Then a run record lands in the log", func() {
				runs, err := runlog.ReadRuns(fx.runPath)
				So(err, ShouldBeNil)
				So(runs, ShouldHaveLength, 1)
				So(runs[0].Character, ShouldEqual, "BoneBunny")
				So(runs[0].MapValue, ShouldEqual, 30)
				So(runs[0].MapRuntime, ShouldEqual, 300)
				So(runs[0].SessionMapsCompleted, ShouldEqual, 1)
				So(runs[0].Added, ShouldHaveLength, 1)
				So(runs[0].Added[0].Qty, ShouldEqual, 3)
			})

			Convey("Then sinks saw the post-commit bag", func() {
				last := fx.sink.last()
				So(last, ShouldNotBeNil)
				So(last["session_maps_completed"], ShouldEqual, 1)
				So(last["session_before_maps_completed"], ShouldEqual, 0)
				So(last["map_value"], ShouldEqual, 30.0)
			})
		})

		Convey("When begin is called twice before an end", func() {
			fx.snapshots.queue = [][]item.Record{
				{{ID: "a", TypeName: "Chaos Orb", StackSize: 5}},
				{{ID: "a", TypeName: "Chaos Orb", StackSize: 5}},
				{{ID: "a", TypeName: "Chaos Orb", StackSize: 6}},
			}

			So(fx.flow.BeginUnit(ctx), ShouldBeNil)
			So(fx.flow.BeginUnit(ctx), ShouldBeNil)
			So(fx.flow.EndUnit(ctx), ShouldBeNil)

			Convey("Then only one unit commits, diffed against the restart", func() {
				vars := fx.flow.Vars()
				So(vars["session_maps_completed"], ShouldEqual, 1)
				So(vars["session_total_value"], ShouldEqual, 10.0)
			})
		})

		Convey("When a restart attempt fails its pre snapshot", func() {
			fx.snapshots.queue = [][]item.Record{
				{{ID: "a", TypeName: "Chaos Orb", StackSize: 5}},
			}
			So(fx.flow.BeginUnit(ctx), ShouldBeNil)
			fx.snapshots.err = errors.New("api down")

			err := fx.flow.BeginUnit(ctx)

			Convey("Then the original unit survives and ends against its own baseline", func() {
				So(err, ShouldNotBeNil)
				So(fx.flow.InFlight(), ShouldBeTrue)

				fx.snapshots.err = nil
				fx.snapshots.queue = [][]item.Record{
					{{ID: "a", TypeName: "Chaos Orb", StackSize: 7}},
				}
				So(fx.flow.EndUnit(ctx), ShouldBeNil)
				So(fx.flow.Vars()["session_total_value"], ShouldEqual, 20.0)
			})
		})

		Convey("When the post snapshot fails", func() {
			fx.snapshots.queue = [][]item.Record{{{ID: "a", TypeName: "Chaos Orb"}}}
			So(fx.flow.BeginUnit(ctx), ShouldBeNil)
			fx.snapshots.err = errors.New("api down")

			err := fx.flow.EndUnit(ctx)

			Convey("Then nothing commits and the unit stays in flight for a retry", func() {
				So(err, ShouldNotBeNil)
				So(fx.flow.InFlight(), ShouldBeTrue)
				So(fx.flow.Vars()["session_maps_completed"], ShouldEqual, 0)

				fx.snapshots.err = nil
				fx.snapshots.queue = [][]item.Record{{{ID: "a", TypeName: "Chaos Orb"}}}
				So(fx.flow.EndUnit(ctx), ShouldBeNil)
				So(fx.flow.Vars()["session_maps_completed"], ShouldEqual, 1)
			})
		})

		Convey("When valuation fails", func() {
			fx.snapshots.queue = [][]item.Record{
				{},
				{{ID: "a", TypeName: "Chaos Orb", StackSize: 2}},
			}
			So(fx.flow.BeginUnit(ctx), ShouldBeNil)
			fx.valuer.err = errors.New("feed down")

			err := fx.flow.EndUnit(ctx)

			Convey("Then the unit aborts before any ledger mutation", func() {
				So(err, ShouldNotBeNil)
				So(fx.flow.Vars()["session_maps_completed"], ShouldEqual, 0)
				So(fx.flow.Vars()["session_total_value"], ShouldEqual, 0.0)
			})
		})

		Convey("When a simulated end runs without a live post snapshot", func() {
			fx.snapshots.queue = [][]item.Record{{}}
			So(fx.flow.BeginUnit(ctx), ShouldBeNil)
			fx.clock.Advance(2 * time.Minute)

			err := fx.flow.EndUnitSimulated(ctx, []item.Record{
				{ID: "sim", TypeName: "Divine Orb", StackSize: 2},
			})

			Convey("Then the fabricated loot commits like real loot", func() {
				So(err, ShouldBeNil)
				vars := fx.flow.Vars()
				So(vars["session_maps_completed"], ShouldEqual, 1)
				So(vars["session_total_value"], ShouldEqual, 20.0)
			})
		})
	})
}

func TestFlowSessions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a flow without a session", t, func() {
		fx := newFixture(t)

		Convey("When beginning and ending units around a session boundary", func() {
			_, err := fx.flow.StartSession(ctx)
			So(err, ShouldBeNil)

			fx.snapshots.queue = [][]item.Record{
				{},
				{{ID: "a", TypeName: "Chaos Orb", StackSize: 4}},
			}
			So(fx.flow.BeginUnit(ctx), ShouldBeNil)
			So(fx.flow.EndUnit(ctx), ShouldBeNil)
			So(fx.flow.Vars()["session_maps_completed"], ShouldEqual, 1)

			info, err := fx.flow.NewSession(ctx)

			Convey("Then the new session starts from a clean slate", func() {
				So(err, ShouldBeNil)
				So(info.SessionID, ShouldNotBeEmpty)
				vars := fx.flow.Vars()
				So(vars["session_maps_completed"], ShouldEqual, 0)
				So(vars["session_total_value"], ShouldEqual, 0.0)
				_, hasDrop := vars["session_top_drop_1_name"]
				So(hasDrop, ShouldBeFalse)
			})
		})

		Convey("When starting twice", func() {
			_, err := fx.flow.StartSession(ctx)
			So(err, ShouldBeNil)
			_, err = fx.flow.StartSession(ctx)

			Convey("Then the second start refuses", func() {
				So(errors.Is(err, session.ErrAlreadyActive), ShouldBeTrue)
			})
		})

		Convey("When ending with no session active", func() {
			_, err := fx.flow.EndSession(ctx)

			Convey("Then it refuses", func() {
				So(errors.Is(err, session.ErrNotActive), ShouldBeTrue)
			})
		})

		Convey("When a session ends", func() {
			_, err := fx.flow.StartSession(ctx)
			So(err, ShouldBeNil)
			fx.clock.Advance(30 * time.Minute)
			final, err := fx.flow.EndSession(ctx)

			Convey("Then the final snapshot reports the runtime", func() {
				So(err, ShouldBeNil)
				So(final.RuntimeSeconds, ShouldEqual, 1800)
			})
		})
	})
}
