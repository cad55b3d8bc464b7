// Package projection flattens typed tracker state into the single
// string-keyed variable bag consumed by notification, display, and overlay
// sinks.
//
// Convention: raw numeric values keep their plain key; a parallel "_fmt"
// key carries the human-readable rendering. Sinks must tolerate missing
// keys, since unit-scoped variables only exist after a unit has run.
package projection

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bonebunny/lootledger/internal/domain/session"
	"github.com/bonebunny/lootledger/internal/domain/topdrops"
)

// Vars is the flat variable bag handed to external sinks.
type Vars map[string]any

// Unit carries the just-completed (or just-started) unit's data.
type Unit struct {
	MapName        string
	MapLevel       int
	MapSeed        int64
	WaystoneTier   int
	ModifierCount  int
	Value          float64
	RuntimeSeconds float64
}

// ValuePerHour derives the unit's own rate.
func (u Unit) ValuePerHour() float64 {
	if u.RuntimeSeconds <= 0 {
		return 0
	}
	return u.Value / (u.RuntimeSeconds / 3600)
}

// Build assembles the bag. before is the pre-commit session baseline used
// for comparison fields; after supplies the current totals. unit may be nil
// before the first begin, and drops may be nil when no tracker exists yet.
func Build(character string, info session.Info, before, after session.Snapshot, unit *Unit, drops *topdrops.Tracker) Vars {
	v := Vars{
		"character": character,
	}

	if info.SessionID != "" {
		v["session_id_short"] = shortID(info.SessionID)
		v["start_time"] = info.StartTime.Format("15:04:05")
	}

	// Current totals come from the post-commit view.
	v["session_maps_completed"] = after.MapsCompleted
	v["session_total_value"] = after.TotalValue
	v["session_total_value_fmt"] = fmtValue(after.TotalValue)
	v["session_runtime_seconds"] = after.RuntimeSeconds
	v["session_time"] = fmtClock(after.RuntimeSeconds)
	v["session_avg_value"] = after.AvgValuePerMap()
	v["session_avg_value_fmt"] = fmtValue(after.AvgValuePerMap())
	v["session_avg_time"] = after.AvgMinutesPerMap()
	v["session_avg_time_fmt"] = fmtDuration(after.AvgMinutesPerMap() * 60)
	v["session_maps_per_hour"] = after.MapsPerHour()
	v["session_maps_per_hour_fmt"] = fmtValue(after.MapsPerHour())
	v["session_value_per_hour"] = after.ValuePerHour
	v["session_value_per_hour_fmt"] = fmtValue(after.ValuePerHour)

	// Comparison baselines come from the pre-commit view.
	v["session_before_maps_completed"] = before.MapsCompleted
	v["session_before_total_value"] = before.TotalValue
	v["session_before_value_per_hour"] = before.ValuePerHour
	v["session_before_value_per_hour_fmt"] = fmtValue(before.ValuePerHour)

	if unit != nil {
		v["map_name"] = unit.MapName
		v["map_level"] = unit.MapLevel
		v["map_seed"] = unit.MapSeed
		v["waystone_tier"] = unit.WaystoneTier
		v["modifier_count"] = unit.ModifierCount
		v["map_value"] = unit.Value
		v["map_value_fmt"] = fmtValue(unit.Value)
		v["map_runtime"] = unit.RuntimeSeconds
		v["map_runtime_fmt"] = fmtDuration(unit.RuntimeSeconds)
		v["map_value_per_hour"] = unit.ValuePerHour()
		v["map_value_per_hour_fmt"] = fmtValue(unit.ValuePerHour())
	}

	if drops != nil {
		addDrops(v, "top_drop", drops.Current())
		addDrops(v, "prev_top_drop", drops.Previous())
		addDrops(v, "session_top_drop", drops.Session())
		if best, ok := drops.Best(); ok {
			v["best_map_name"] = best.Name
			v["best_map_tier"] = best.Tier
			v["best_map_value"] = best.Value
			v["best_map_value_fmt"] = fmtValue(best.Value)
			v["best_map_runtime_fmt"] = fmtDuration(best.RuntimeSeconds)
		}
	}

	return v
}

func addDrops(v Vars, prefix string, drops []topdrops.Drop) {
	for i, d := range drops {
		key := prefix + "_" + strconv.Itoa(i+1)
		v[key+"_name"] = d.Name
		v[key+"_stack"] = d.Stack
		v[key+"_value"] = d.Value
		v[key+"_value_fmt"] = fmtValue(d.Value)
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// fmtValue renders a value with one decimal, dropping it when whole:
// 740 -> "740", 61.66 -> "61.7".
func fmtValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	if len(s) > 2 && s[len(s)-2:] == ".0" {
		return s[:len(s)-2]
	}
	return s
}

// fmtDuration renders seconds as "4m32s" or "1h04m".
func fmtDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// fmtClock renders a session runtime as "1h 30m" or "42m".
func fmtClock(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
