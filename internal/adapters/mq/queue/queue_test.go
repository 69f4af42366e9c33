package queue

import (
	"context"
	"testing"

	"github.com/okian/funbet/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity 2", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(2))

		Convey("It should start empty", func() {
			So(q.Len(ctx), ShouldEqual, 0)
			So(q.IsClosed(), ShouldBeFalse)
		})

		Convey("Jobs should come out in order", func() {
			first := model.NewSettlementJob("a")
			second := model.NewSettlementJob("b")
			So(q.Enqueue(ctx, first), ShouldBeTrue)
			So(q.Enqueue(ctx, second), ShouldBeTrue)

			dctx, cancel := context.WithCancel(ctx)
			defer cancel()
			ch := q.Dequeue(dctx)
			So((<-ch).ID, ShouldEqual, first.ID)
			So((<-ch).ID, ShouldEqual, second.ID)
		})

		Convey("A full queue should refuse more jobs", func() {
			So(q.Enqueue(ctx, model.NewSettlementJob("a")), ShouldBeTrue)
			So(q.Enqueue(ctx, model.NewSettlementJob("a")), ShouldBeTrue)
			So(q.Enqueue(ctx, model.NewSettlementJob("a")), ShouldBeFalse)
			So(q.Len(ctx), ShouldEqual, 2)
		})

		Convey("A cancelled context should refuse the job", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(q.Enqueue(cctx, model.NewSettlementJob("a")), ShouldBeFalse)
		})

		Convey("A closed queue should refuse jobs and close the dequeue channel", func() {
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)
			So(q.Enqueue(ctx, model.NewSettlementJob("a")), ShouldBeFalse)
			_, ok := <-q.Dequeue(ctx)
			So(ok, ShouldBeFalse)
		})
	})
}
