package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/meritum/agora/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given an in-memory deduper", t, func() {
		ctx := context.Background()

		Convey("A new evaluation event is recorded once", func() {
			d := dedupe.NewInMemory()

			So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeTrue)
			So(d.Size(), ShouldEqual, 1)
		})

		Convey("Unrecord allows a failed event to be retried", func() {
			d := dedupe.NewInMemory()

			So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)
			d.Unrecord(ctx, "evt-1")
			So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)
		})

		Convey("A bounded deduper evicts the oldest entries first", func() {
			d := dedupe.NewInMemory(dedupe.WithCapacity(3))

			for i := 0; i < 4; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("evt-%d", i)), ShouldBeFalse)
			}

			Convey("Then the first entry is forgotten and recent ones remain", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "evt-0"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "evt-3"), ShouldBeTrue)
			})
		})

		Convey("A non-positive capacity disables eviction", func() {
			d := dedupe.NewInMemory(dedupe.WithCapacity(0))

			for i := 0; i < 100; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("evt-%d", i))
			}
			So(d.Size(), ShouldEqual, 100)
		})
	})
}

func TestInMemoryDeduperConcurrency(t *testing.T) {
	Convey("Concurrent recording of the same ID admits it exactly once", t, func() {
		d := dedupe.NewInMemory()
		ctx := context.Background()

		const goroutines = 32
		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := 0

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "evt-contended") {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		So(admitted, ShouldEqual, 1)
		So(d.Size(), ShouldEqual, 1)
	})
}
