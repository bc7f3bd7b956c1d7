package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/beacon/internal/domain/ledger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLedger(t *testing.T) {
	Convey("Given a delivery ledger", t, func() {
		ctx := context.Background()
		l := ledger.New()

		Convey("When an id is recorded for the first time", func() {
			seen := l.SeenAndRecord(ctx, "batch-1")

			Convey("Then it should not have been seen before", func() {
				So(seen, ShouldBeFalse)
				So(l.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again reports it as seen", func() {
				So(l.SeenAndRecord(ctx, "batch-1"), ShouldBeTrue)
				So(l.Size(), ShouldEqual, 1)
			})
		})

		Convey("When an id is unrecorded", func() {
			l.SeenAndRecord(ctx, "batch-1")
			l.Unrecord(ctx, "batch-1")

			Convey("Then it can be recorded fresh again", func() {
				So(l.Size(), ShouldEqual, 0)
				So(l.SeenAndRecord(ctx, "batch-1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown id", func() {
			l.Unrecord(ctx, "never-recorded")

			Convey("Then nothing changes", func() {
				So(l.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestLedgerEviction(t *testing.T) {
	Convey("Given a ledger with a small capacity", t, func() {
		ctx := context.Background()
		l := ledger.New(ledger.WithMaxSize(3))

		Convey("When more ids arrive than it can hold", func() {
			for i := 0; i < 5; i++ {
				l.SeenAndRecord(ctx, fmt.Sprintf("batch-%d", i))
			}

			Convey("Then the oldest ids are evicted first", func() {
				So(l.Size(), ShouldEqual, 3)
				So(l.SeenAndRecord(ctx, "batch-4"), ShouldBeTrue)
				// batch-0 was evicted, so it records as new and evicts the
				// next oldest in turn.
				So(l.SeenAndRecord(ctx, "batch-0"), ShouldBeFalse)
			})
		})
	})
}

func TestLedgerConcurrency(t *testing.T) {
	Convey("Given concurrent recorders of the same id", t, func() {
		ctx := context.Background()
		l := ledger.New()

		const goroutines = 16
		firsts := make(chan bool, goroutines)

		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !l.SeenAndRecord(ctx, "contested") {
					firsts <- true
				}
			}()
		}
		wg.Wait()
		close(firsts)

		Convey("Then exactly one recorder wins", func() {
			wins := 0
			for range firsts {
				wins++
			}
			So(wins, ShouldEqual, 1)
			So(l.Size(), ShouldEqual, 1)
		})
	})
}
