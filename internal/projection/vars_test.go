package projection_test

import (
	"testing"
	"time"

	"github.com/bonebunny/lootledger/internal/domain/session"
	"github.com/bonebunny/lootledger/internal/domain/topdrops"
	"github.com/bonebunny/lootledger/internal/projection"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBuild(t *testing.T) {
	info := session.Info{
		SessionID: "0b7e9c31-aaaa-bbbb-cccc-dddddddddddd",
		StartTime: time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC),
	}
	before := session.Snapshot{MapsCompleted: 2, TotalValue: 100, RuntimeSeconds: 3600, ValuePerHour: 100}
	after := session.Snapshot{MapsCompleted: 3, TotalValue: 161.66, RuntimeSeconds: 3900, ValuePerHour: 149.2}

	Convey("Given session state and a completed unit", t, func() {
		unit := &projection.Unit{
			MapName:        "Azmerian Ranges",
			MapLevel:       80,
			Value:          61.66,
			RuntimeSeconds: 272,
		}
		drops := topdrops.NewTracker()
		drops.RecordUnit([]topdrops.Drop{
			{Name: "Divine Orb", Stack: 1, Value: 40},
		}, topdrops.UnitMeta{Name: "Azmerian Ranges", Value: 61.66, RuntimeSeconds: 272})

		vars := projection.Build("BoneBunny", info, before, after, unit, drops)

		Convey("Then session totals come from the after view", func() {
			So(vars["session_maps_completed"], ShouldEqual, 3)
			So(vars["session_total_value"], ShouldEqual, 161.66)
			So(vars["session_total_value_fmt"], ShouldEqual, "161.7")
		})

		Convey("Then comparison baselines come from the before view", func() {
			So(vars["session_before_maps_completed"], ShouldEqual, 2)
			So(vars["session_before_value_per_hour"], ShouldEqual, 100.0)
			So(vars["session_before_value_per_hour_fmt"], ShouldEqual, "100")
		})

		Convey("Then unit keys carry the map's own numbers", func() {
			So(vars["map_name"], ShouldEqual, "Azmerian Ranges")
			So(vars["map_value_fmt"], ShouldEqual, "61.7")
			So(vars["map_runtime_fmt"], ShouldEqual, "4m32s")
		})

		Convey("Then the session identity is shortened", func() {
			So(vars["session_id_short"], ShouldEqual, "0b7e9c31")
			So(vars["start_time"], ShouldEqual, "21:00:00")
		})

		Convey("Then drop scopes are flattened with fmt twins", func() {
			So(vars["top_drop_1_name"], ShouldEqual, "Divine Orb")
			So(vars["top_drop_1_value_fmt"], ShouldEqual, "40")
			So(vars["session_top_drop_1_name"], ShouldEqual, "Divine Orb")
			So(vars["best_map_name"], ShouldEqual, "Azmerian Ranges")
		})
	})

	Convey("Given no unit and no tracker", t, func() {
		vars := projection.Build("BoneBunny", session.Info{}, session.Snapshot{}, session.Snapshot{}, nil, nil)

		Convey("Then unit-scoped keys are absent rather than zeroed", func() {
			_, hasMap := vars["map_name"]
			_, hasDrop := vars["top_drop_1_name"]
			_, hasID := vars["session_id_short"]
			So(hasMap, ShouldBeFalse)
			So(hasDrop, ShouldBeFalse)
			So(hasID, ShouldBeFalse)
		})

		Convey("Then session totals still render as zeros", func() {
			So(vars["session_maps_completed"], ShouldEqual, 0)
			So(vars["session_time"], ShouldEqual, "0m")
		})
	})
}

func TestUnitValuePerHour(t *testing.T) {
	Convey("Given a unit with runtime", t, func() {
		u := projection.Unit{Value: 50, RuntimeSeconds: 1800}
		So(u.ValuePerHour(), ShouldEqual, 100)
	})

	Convey("Given a unit without runtime", t, func() {
		u := projection.Unit{Value: 50}
		So(u.ValuePerHour(), ShouldEqual, 0)
	})
}
