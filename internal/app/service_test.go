package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/funbet/internal/app"
	"github.com/okian/funbet/internal/domain/ledger"
	"github.com/okian/funbet/internal/domain/match"
	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/internal/domain/wagerbook"
	"github.com/okian/funbet/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(
			service.WithQueueSize(4),
			service.WithDedupeSize(100),
			service.WithBettorMode(wagerbook.AllIn),
			service.WithBettorLimit(3),
		)

		Convey("Operations before Start should report ErrNotStarted", func() {
			_, err := svc.PlaceWager(ctx, "u1", "a", 1)
			So(errors.Is(err, match.ErrNotStarted), ShouldBeTrue)
			_, err = svc.OpenAccount(ctx, "u1", "", 0, false)
			So(errors.Is(err, match.ErrNotStarted), ShouldBeTrue)
			So(svc.CurrentMatchDocument().Status, ShouldEqual, model.StatusClosed)
			So(svc.GetStats(ctx)["started"], ShouldEqual, false)
		})

		Convey("Start should be idempotent and mark the service started", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["status"], ShouldEqual, "closed")
			So(stats["bettorMode"], ShouldEqual, "all_in")
			So(stats["settlementState"], ShouldEqual, "idle")
			So(stats["degraded"], ShouldEqual, false)

			Convey("And Stop should mark it stopped", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Accounts(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithStartingBalance(50))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		Convey("Opening without a balance should use the starting balance", func() {
			a, err := svc.OpenAccount(ctx, "u1", "", 0, false)
			So(err, ShouldBeNil)
			So(a.Balance, ShouldEqual, 50)
			So(a.DisplayName, ShouldEqual, "u1")
			So(a.IsAdmin(), ShouldBeFalse)
		})

		Convey("Admins should carry the admin permission", func() {
			a, err := svc.OpenAccount(ctx, "root", "Root", 5, true)
			So(err, ShouldBeNil)
			So(a.IsAdmin(), ShouldBeTrue)
		})

		Convey("Blank ids and duplicates should be rejected", func() {
			_, err := svc.OpenAccount(ctx, "  ", "x", 1, false)
			So(errors.Is(err, ledger.ErrInvalidAccountID), ShouldBeTrue)
			_, err = svc.OpenAccount(ctx, "u1", "x", 1, false)
			So(err, ShouldBeNil)
			_, err = svc.OpenAccount(ctx, "u1", "x", 1, false)
			So(errors.Is(err, ledger.ErrAccountExists), ShouldBeTrue)
		})

		Convey("Payments should raise rank once per idempotency key", func() {
			_, err := svc.OpenAccount(ctx, "u1", "Una", 10, false)
			So(err, ShouldBeNil)

			a, err := svc.Pay(ctx, "u1", 3, "k1")
			So(err, ShouldBeNil)
			So(a.Balance, ShouldEqual, 7)
			So(a.Rank, ShouldEqual, 3)

			_, err = svc.Pay(ctx, "u1", 3, "k1")
			So(errors.Is(err, ledger.ErrDuplicatePayment), ShouldBeTrue)

			_, err = svc.Pay(ctx, "u1", 30, "k2")
			So(errors.Is(err, ledger.ErrInsufficientFunds), ShouldBeTrue)
			a, err = svc.Pay(ctx, "u1", 2, "k2")
			So(err, ShouldBeNil)
			So(a.Rank, ShouldEqual, 5)

			a, err = svc.Pay(ctx, "u1", 1, "")
			So(err, ShouldBeNil)
			_, err = svc.Pay(ctx, "u1", 1, "")
			So(err, ShouldBeNil)

			got, err := svc.Account(ctx, "u1")
			So(err, ShouldBeNil)
			So(got.Balance, ShouldEqual, 3)
			So(got.Rank, ShouldEqual, 7)
		})

		Convey("The leaderboard should order by rank", func() {
			for _, id := range []string{"a", "b", "c"} {
				_, err := svc.OpenAccount(ctx, id, id, 10, false)
				So(err, ShouldBeNil)
			}
			_, err := svc.Pay(ctx, "b", 5, "")
			So(err, ShouldBeNil)
			_, err = svc.Pay(ctx, "c", 2, "")
			So(err, ShouldBeNil)

			top, err := svc.Leaderboard(ctx, 2)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 2)
			So(top[0].AccountID, ShouldEqual, "b")
			So(top[0].Position, ShouldEqual, 1)
			So(top[1].AccountID, ShouldEqual, "c")
			So(svc.GetStats(ctx)["totalAccounts"], ShouldEqual, 3)
		})
	})
}

func TestService_Wagers(t *testing.T) {
	Convey("Given a started service with two accounts and an admin", t, func() {
		ctx := context.Background()
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		_, err := svc.OpenAccount(ctx, "u1", "Una", 10, false)
		So(err, ShouldBeNil)

		Convey("Wagers while closed should be refused", func() {
			_, err := svc.PlaceWager(ctx, "u1", "a", 1)
			So(errors.Is(err, wagerbook.ErrBiddingClosed), ShouldBeTrue)
			_, err = svc.PlaceWager(ctx, "ghost", "zzz", -1)
			So(errors.Is(err, wagerbook.ErrBiddingClosed), ShouldBeTrue)
			So(svc.BiddingOpen(), ShouldBeFalse)
		})

		Convey("Non-admin proposals should be refused", func() {
			proposed := model.NewMatch()
			proposed.Status = model.StatusOpen
			proposed.Participants["a"] = model.Participant{Name: "A"}
			_, err := svc.ProposeTransition(ctx, svc.CurrentMatchDocument(), proposed, false)
			So(errors.Is(err, match.ErrNotAuthorized), ShouldBeTrue)
		})

		Convey("Once open, wagers should be validated against the balance", func() {
			proposed := model.NewMatch()
			proposed.Status = model.StatusOpen
			proposed.Participants["a"] = model.Participant{Name: "A"}
			proposed.Participants["b"] = model.Participant{Name: "B"}
			doc, err := svc.ProposeTransition(ctx, svc.CurrentMatchDocument(), proposed, true)
			So(err, ShouldBeNil)
			So(doc.Status, ShouldEqual, model.StatusOpen)

			w, err := svc.PlaceWager(ctx, "u1", "a", 4)
			So(err, ShouldBeNil)
			So(w.Amount, ShouldEqual, 4)

			_, err = svc.PlaceWager(ctx, "u1", "a", 11)
			So(errors.Is(err, wagerbook.ErrInsufficientFunds), ShouldBeTrue)
			_, err = svc.PlaceWager(ctx, "u1", "z", 1)
			So(errors.Is(err, wagerbook.ErrInvalidParticipant), ShouldBeTrue)
			_, err = svc.PlaceWager(ctx, "u1", "a", 1.5)
			So(errors.Is(err, wagerbook.ErrInvalidAmount), ShouldBeTrue)
			_, err = svc.PlaceWager(ctx, "ghost", "a", 1)
			So(errors.Is(err, ledger.ErrUnknownAccount), ShouldBeTrue)

			So(svc.GetStats(ctx)["bookSize"], ShouldEqual, 1)
			So(svc.GetStats(ctx)["biddingOpen"], ShouldEqual, true)
			So(svc.BiddingOpen(), ShouldBeTrue)
		})

		Convey("AwaitSettlement without a payout should report none", func() {
			_, err := svc.AwaitSettlement(ctx)
			So(errors.Is(err, match.ErrNoSettlement), ShouldBeTrue)
		})
	})
}
