package model_test

import (
	"context"
	"testing"

	model "github.com/okian/funbet/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestMatchClone(t *testing.T) {
	convey.Convey("Given a match document", t, func() {
		m := model.NewMatch()
		m.Status = model.StatusInProgress
		m.Participants["a"] = model.Participant{Name: "Alpha", Amount: 1, Odds: "1:10"}
		m.Bettors["a"] = []model.Bettor{{DisplayName: "W", Rank: 3}}

		convey.Convey("When cloning and mutating the copy", func() {
			cp := m.Clone()
			cp.Participants["a"] = model.Participant{Name: "changed"}
			cp.Bettors["a"][0].Rank = 99
			cp.Participants["b"] = model.Participant{Name: "Beta"}

			convey.Convey("Then the original should be untouched", func() {
				convey.So(m.Participants["a"].Name, convey.ShouldEqual, "Alpha")
				convey.So(m.Bettors["a"][0].Rank, convey.ShouldEqual, 3)
				convey.So(m.Participants, convey.ShouldHaveLength, 1)
				convey.So(cp.Status, convey.ShouldEqual, model.StatusInProgress)
			})
		})

		convey.Convey("Keys should list participants", func() {
			convey.So(m.Keys(), convey.ShouldResemble, []string{"a"})
		})
	})
}

func TestStatus(t *testing.T) {
	convey.Convey("Given statuses", t, func() {
		for _, s := range model.Statuses() {
			convey.So(s.Valid(), convey.ShouldBeTrue)
		}
		convey.So(model.Status("paused").Valid(), convey.ShouldBeFalse)
		convey.So(string(model.StatusInProgress), convey.ShouldEqual, "inProgress")
	})
}

func TestAccountIsAdmin(t *testing.T) {
	convey.Convey("Given accounts with and without the admin permission", t, func() {
		convey.So(model.Account{Permissions: []string{"admin"}}.IsAdmin(), convey.ShouldBeTrue)
		convey.So(model.Account{Permissions: []string{"pay"}}.IsAdmin(), convey.ShouldBeFalse)
		convey.So(model.Account{}.IsAdmin(), convey.ShouldBeFalse)
	})
}

func TestSettlementJob(t *testing.T) {
	convey.Convey("Given a new settlement job", t, func() {
		a := model.NewSettlementJob("a")
		b := model.NewSettlementJob("a")
		ctx := context.Background()

		convey.Convey("Then ids should be unique", func() {
			convey.So(a.ID, convey.ShouldNotEqual, b.ID)
			convey.So(a.Winner, convey.ShouldEqual, "a")
		})

		convey.Convey("Then every copy should observe the first resolution", func() {
			cp := a
			a.Resolve(model.SettlementOutcome{Settled: true, Credits: 1})
			cp.Resolve(model.SettlementOutcome{Settled: false})

			got, err := cp.Wait(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got.Settled, convey.ShouldBeTrue)
			convey.So(got.JobID, convey.ShouldEqual, a.ID)
		})

		convey.Convey("Then waiting on an unresolved job should honour the context", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := b.Wait(cctx)
			convey.So(err, convey.ShouldEqual, context.Canceled)
		})

		convey.Convey("Then a zero job should count as resolved", func() {
			_, err := model.SettlementJob{}.Wait(ctx)
			convey.So(err, convey.ShouldBeNil)
		})
	})
}
