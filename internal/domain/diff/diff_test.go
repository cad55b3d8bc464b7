package diff_test

import (
	"errors"
	"testing"
	"time"

	"github.com/bonebunny/lootledger/internal/domain/diff"
	"github.com/bonebunny/lootledger/internal/domain/item"
	. "github.com/smartystreets/goconvey/convey"
)

func snap(kind item.Kind, taken time.Time, items ...item.Record) item.Snapshot {
	return item.NewSnapshot(items, kind, taken)
}

func TestCompute(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	later := base.Add(5 * time.Minute)

	Convey("Given a pre and a post snapshot", t, func() {
		Convey("When both snapshots are identical", func() {
			items := []item.Record{
				{ID: "a", TypeName: "Chaos Orb", StackSize: 5},
				{ID: "b", TypeName: "Divine Orb", StackSize: 1},
			}
			result, err := diff.Compute(snap(item.KindPre, base, items...), snap(item.KindPost, later, items...))

			Convey("Then the diff is empty", func() {
				So(err, ShouldBeNil)
				So(result.Empty(), ShouldBeTrue)
			})
		})

		Convey("When a brand new item appears in post", func() {
			pre := snap(item.KindPre, base,
				item.Record{ID: "a", TypeName: "Chaos Orb", StackSize: 5})
			post := snap(item.KindPost, later,
				item.Record{ID: "a", TypeName: "Chaos Orb", StackSize: 5},
				item.Record{ID: "b", TypeName: "Divine Orb", StackSize: 1})
			result, err := diff.Compute(pre, post)

			Convey("Then it is reported as added", func() {
				So(err, ShouldBeNil)
				So(result.AddedCount(), ShouldEqual, 1)
				So(result.Added[0].TypeName, ShouldEqual, "Divine Orb")
				So(result.RemovedCount(), ShouldEqual, 0)
			})
		})

		Convey("When a stack grows from 5 to 8 on the same key", func() {
			pre := snap(item.KindPre, base,
				item.Record{ID: "a", TypeName: "Chaos Orb", StackSize: 5})
			post := snap(item.KindPost, later,
				item.Record{ID: "a", TypeName: "Chaos Orb", StackSize: 8})
			result, err := diff.Compute(pre, post)

			Convey("Then the added entry carries the delta, not the new count", func() {
				So(err, ShouldBeNil)
				So(result.AddedCount(), ShouldEqual, 1)
				So(result.Added[0].TypeName, ShouldEqual, "Chaos Orb")
				So(result.Added[0].StackSize, ShouldEqual, 3)
			})
		})

		Convey("When a stack shrinks from 8 to 5", func() {
			pre := snap(item.KindPre, base,
				item.Record{ID: "a", TypeName: "Chaos Orb", StackSize: 8})
			post := snap(item.KindPost, later,
				item.Record{ID: "a", TypeName: "Chaos Orb", StackSize: 5})
			result, err := diff.Compute(pre, post)

			Convey("Then the removed entry carries the delta", func() {
				So(err, ShouldBeNil)
				So(result.RemovedCount(), ShouldEqual, 1)
				So(result.Removed[0].StackSize, ShouldEqual, 3)
				So(result.AddedCount(), ShouldEqual, 0)
			})
		})

		Convey("When two id-less items swap grid positions", func() {
			pre := snap(item.KindPre, base,
				item.Record{TypeName: "Sapphire Ring", X: 0, Y: 0},
				item.Record{TypeName: "Topaz Ring", X: 1, Y: 0})
			post := snap(item.KindPost, later,
				item.Record{TypeName: "Sapphire Ring", X: 1, Y: 0},
				item.Record{TypeName: "Topaz Ring", X: 0, Y: 0})
			result, err := diff.Compute(pre, post)

			Convey("Then the swap nets out to an empty diff", func() {
				So(err, ShouldBeNil)
				So(result.Empty(), ShouldBeTrue)
			})
		})

		Convey("When an id-less item moves and a genuinely new one drops", func() {
			pre := snap(item.KindPre, base,
				item.Record{TypeName: "Sapphire Ring", X: 0, Y: 0})
			post := snap(item.KindPost, later,
				item.Record{TypeName: "Sapphire Ring", X: 3, Y: 2},
				item.Record{TypeName: "Ruby Ring", X: 0, Y: 0})
			result, err := diff.Compute(pre, post)

			Convey("Then only the new item survives the netting", func() {
				So(err, ShouldBeNil)
				So(result.AddedCount(), ShouldEqual, 1)
				So(result.Added[0].TypeName, ShouldEqual, "Ruby Ring")
				So(result.RemovedCount(), ShouldEqual, 0)
			})
		})

		Convey("When an item disappears entirely", func() {
			pre := snap(item.KindPre, base,
				item.Record{ID: "a", TypeName: "Chaos Orb", StackSize: 5},
				item.Record{ID: "b", TypeName: "Scroll of Wisdom", StackSize: 40})
			post := snap(item.KindPost, later,
				item.Record{ID: "a", TypeName: "Chaos Orb", StackSize: 5})
			result, err := diff.Compute(pre, post)

			Convey("Then it is reported as removed at full stack", func() {
				So(err, ShouldBeNil)
				So(result.RemovedCount(), ShouldEqual, 1)
				So(result.Removed[0].TypeName, ShouldEqual, "Scroll of Wisdom")
				So(result.Removed[0].StackSize, ShouldEqual, 40)
			})
		})

		Convey("When the pre snapshot was taken after the post snapshot", func() {
			pre := snap(item.KindPre, later)
			post := snap(item.KindPost, base)
			_, err := diff.Compute(pre, post)

			Convey("Then it refuses with a snapshot order error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, diff.ErrSnapshotOrder), ShouldBeTrue)
			})
		})
	})
}
