// Package diff computes added/removed item sets between two inventory
// snapshots.
package diff

import (
	"fmt"

	"github.com/bonebunny/lootledger/internal/domain/item"
)

// Result holds the outcome of comparing a pre and post snapshot. It is
// derived data and never mutated after creation.
type Result struct {
	Added   []item.Record
	Removed []item.Record
}

// AddedCount returns the number of added entries.
func (r Result) AddedCount() int { return len(r.Added) }

// RemovedCount returns the number of removed entries.
func (r Result) RemovedCount() int { return len(r.Removed) }

// Empty reports whether nothing changed between the snapshots.
func (r Result) Empty() bool { return len(r.Added) == 0 && len(r.Removed) == 0 }

// Compute diffs two snapshots by identity key.
//
// A record whose key exists on both sides but whose stack grew is surfaced
// as an added entry carrying the stack delta, not the full new count; a
// shrunk stack becomes a removed entry with the delta. Records whose keys
// appear on only one side are candidate additions/removals; before being
// reported they are netted against the other side by (type, base, stack) so
// two items swapping positions within one capture produce an empty diff.
func Compute(pre, post item.Snapshot) (Result, error) {
	if pre.Taken.After(post.Taken) {
		return Result{}, fmt.Errorf("%w: pre taken %s, post taken %s",
			ErrSnapshotOrder, pre.Taken.Format("15:04:05"), post.Taken.Format("15:04:05"))
	}

	preByKey := make(map[string]item.Record, len(pre.Items))
	for _, rec := range pre.Items {
		preByKey[rec.Key()] = rec
	}
	postByKey := make(map[string]item.Record, len(post.Items))
	for _, rec := range post.Items {
		postByKey[rec.Key()] = rec
	}

	var added, removed []item.Record

	// Stack deltas on matching keys. Iterate post in capture order so the
	// result is deterministic for identical inputs.
	for _, rec := range post.Items {
		before, ok := preByKey[rec.Key()]
		if !ok {
			continue
		}
		switch delta := rec.Stack() - before.Stack(); {
		case delta > 0:
			added = append(added, withStack(rec, delta))
		case delta < 0:
			removed = append(removed, withStack(before, -delta))
		}
	}

	// Keys present on only one side.
	var candAdded, candRemoved []item.Record
	for _, rec := range post.Items {
		if _, ok := preByKey[rec.Key()]; !ok {
			candAdded = append(candAdded, rec)
		}
	}
	for _, rec := range pre.Items {
		if _, ok := postByKey[rec.Key()]; !ok {
			candRemoved = append(candRemoved, rec)
		}
	}

	candAdded, candRemoved = netSwaps(candAdded, candRemoved)
	added = append(added, candAdded...)
	removed = append(removed, candRemoved...)

	return Result{Added: added, Removed: removed}, nil
}

// netSwaps cancels addition/removal pairs that carry the same type, base
// type, and stack count. Such pairs are items that changed slots between
// captures, not loot.
func netSwaps(added, removed []item.Record) ([]item.Record, []item.Record) {
	if len(added) == 0 || len(removed) == 0 {
		return added, removed
	}

	pending := make(map[string]int, len(removed))
	for _, rec := range removed {
		pending[contentKey(rec)]++
	}

	keptAdded := added[:0:0]
	cancelled := make(map[string]int, len(removed))
	for _, rec := range added {
		key := contentKey(rec)
		if pending[key] > 0 {
			pending[key]--
			cancelled[key]++
			continue
		}
		keptAdded = append(keptAdded, rec)
	}

	keptRemoved := removed[:0:0]
	for _, rec := range removed {
		key := contentKey(rec)
		if cancelled[key] > 0 {
			cancelled[key]--
			continue
		}
		keptRemoved = append(keptRemoved, rec)
	}
	return keptAdded, keptRemoved
}

// contentKey identifies a record by what it is, ignoring where it sits.
func contentKey(rec item.Record) string {
	return fmt.Sprintf("%s|%s|%d", rec.TypeName, rec.BaseType, rec.Stack())
}

func withStack(rec item.Record, stack int) item.Record {
	rec.StackSize = stack
	return rec
}
