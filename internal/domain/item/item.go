// Package item defines inventory records, snapshots, and the identity key
// policy used to compare them.
package item

import (
	"fmt"
	"time"
)

// Record is one inventory slot's contents at a point in time. Records are
// value types and are never mutated after capture; they belong to the
// snapshot that produced them.
type Record struct {
	// ID is the provider-assigned unique id, when present.
	ID string `json:"id,omitempty"`

	// TypeName is the display type, e.g. "Chaos Orb".
	TypeName string `json:"type_name"`

	// BaseType disambiguates items sharing a type name.
	BaseType string `json:"base_type,omitempty"`

	// StackSize is the stack count; zero is normalized to one.
	StackSize int `json:"stack_size"`

	// X, Y is the inventory grid position.
	X int `json:"x"`
	Y int `json:"y"`

	// Rarity is a category hint used by pricing, e.g. "currency".
	Rarity string `json:"rarity,omitempty"`
}

// Stack returns the stack count, treating unset as a single item.
func (r Record) Stack() int {
	if r.StackSize <= 0 {
		return 1
	}
	return r.StackSize
}

// Name returns the best available display name.
func (r Record) Name() string {
	switch {
	case r.TypeName != "":
		return r.TypeName
	case r.BaseType != "":
		return r.BaseType
	default:
		return "Unknown"
	}
}

// Key returns the identity key used to match records across snapshots.
// Preference order: provider id, then a composite of type, position, and
// base type for items that neither move nor restack.
func (r Record) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("%s|%d,%d|%s", r.TypeName, r.X, r.Y, r.BaseType)
}

// Kind labels why a snapshot was taken.
type Kind string

const (
	KindPre   Kind = "PRE"
	KindPost  Kind = "POST"
	KindCheck Kind = "CHECK"
)

// Snapshot is an immutable point-in-time inventory capture.
type Snapshot struct {
	Items []Record
	Kind  Kind
	Taken time.Time
}

// NewSnapshot copies items into a fresh Snapshot so later provider reuse of
// the backing slice cannot alter it.
func NewSnapshot(items []Record, kind Kind, taken time.Time) Snapshot {
	owned := make([]Record, len(items))
	copy(owned, items)
	return Snapshot{Items: owned, Kind: kind, Taken: taken}
}

// ItemCount returns the number of records in the snapshot.
func (s Snapshot) ItemCount() int {
	return len(s.Items)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("Snapshot(%s, %d items, %s)", s.Kind, len(s.Items), s.Taken.Format("15:04:05"))
}
