// Package topdrops maintains bounded most-valuable-drop rankings and the
// best completed run of the session.
package topdrops

import (
	"sort"
	"sync"
)

// MaxDrops bounds every ranking scope.
const MaxDrops = 3

// Drop is one ranked loot row.
type Drop struct {
	Name  string  `json:"name"`
	Stack int     `json:"stack"`
	Value float64 `json:"value"`
}

// UnitMeta describes the completed run being recorded.
type UnitMeta struct {
	Name           string
	Tier           int
	Value          float64
	RuntimeSeconds float64
}

// BestUnit is the highest-value completed run so far this session.
type BestUnit struct {
	Name           string  `json:"name"`
	Tier           int     `json:"tier"`
	Value          float64 `json:"value"`
	RuntimeSeconds float64 `json:"runtime_seconds"`
}

// Tracker keeps three ranking scopes: the just-completed unit, the unit
// before it, and the session-wide merge. It is updated exactly once per
// completed unit, inside the same commit step that updates the ledger.
type Tracker struct {
	mu sync.Mutex

	current  []Drop
	previous []Drop
	session  []Drop

	best    BestUnit
	hasBest bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordUnit folds one completed unit into all scopes. The previous scope
// receives what was current before this call; the session scope is a
// merge-and-truncate keeping earlier-recorded entries ahead on ties. The
// best unit is replaced only when the new value is strictly greater.
func (t *Tracker) RecordUnit(drops []Drop, meta UnitMeta) {
	t.mu.Lock()
	defer t.mu.Unlock()

	unitTop := topN(drops)

	t.previous = t.current
	t.current = unitTop
	t.session = topN(append(append([]Drop{}, t.session...), unitTop...))

	if !t.hasBest || meta.Value > t.best.Value {
		t.best = BestUnit{
			Name:           meta.Name,
			Tier:           meta.Tier,
			Value:          meta.Value,
			RuntimeSeconds: meta.RuntimeSeconds,
		}
		t.hasBest = true
	}
}

// Reset clears all scopes, typically on a session boundary.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
	t.previous = nil
	t.session = nil
	t.best = BestUnit{}
	t.hasBest = false
}

// Current returns the just-completed unit's drops.
func (t *Tracker) Current() []Drop {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyDrops(t.current)
}

// Previous returns the drops of the unit before the current one.
func (t *Tracker) Previous() []Drop {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyDrops(t.previous)
}

// Session returns the session-wide drops.
func (t *Tracker) Session() []Drop {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyDrops(t.session)
}

// Best returns the best completed unit and whether one exists yet.
func (t *Tracker) Best() (BestUnit, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.best, t.hasBest
}

// topN sorts descending by value and truncates to MaxDrops. The sort is
// stable so ties keep their first-seen order, and zero-value rows are not
// ranked.
func topN(drops []Drop) []Drop {
	ranked := make([]Drop, 0, len(drops))
	for _, d := range drops {
		if d.Value > 0 {
			ranked = append(ranked, d)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value > ranked[j].Value
	})
	if len(ranked) > MaxDrops {
		ranked = ranked[:MaxDrops]
	}
	return ranked
}

func copyDrops(drops []Drop) []Drop {
	if drops == nil {
		return nil
	}
	out := make([]Drop, len(drops))
	copy(out, drops)
	return out
}
