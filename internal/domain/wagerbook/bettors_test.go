package wagerbook

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/funbet/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type staticAccounts map[string]model.Account

func (s staticAccounts) Account(_ context.Context, id string) (model.Account, error) {
	a, ok := s[id]
	if !ok {
		return model.Account{}, errors.New("no such account")
	}
	return a, nil
}

func TestBettorsFor(t *testing.T) {
	Convey("Given wagers from ranked accounts", t, func() {
		ctx := context.Background()
		accounts := staticAccounts{
			"1": {ID: "1", DisplayName: "carol", Balance: 5, Rank: 2},
			"2": {ID: "2", DisplayName: "alice", Balance: 9, Rank: 2},
			"3": {ID: "3", DisplayName: "bob", Balance: 3, Rank: 7},
			"4": {ID: "4", DisplayName: "dave", Balance: 4, Rank: 0},
		}
		wagers := []model.Wager{
			{AccountID: "1", ParticipantKey: "a", Amount: 5},
			{AccountID: "2", ParticipantKey: "a", Amount: 1},
			{AccountID: "3", ParticipantKey: "a", Amount: 3},
			{AccountID: "4", ParticipantKey: "b", Amount: 4},
		}

		Convey("all_bettors should list everyone by rank then name", func() {
			got, err := BettorsFor(ctx, wagers, "a", AllBettors, 0, accounts)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, []model.Bettor{
				{DisplayName: "bob", Rank: 7},
				{DisplayName: "alice", Rank: 2},
				{DisplayName: "carol", Rank: 2},
			})
		})

		Convey("The limit should truncate the listing", func() {
			got, err := BettorsFor(ctx, wagers, "a", AllBettors, 2, accounts)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
		})

		Convey("all_in should keep only wagers equal to the balance", func() {
			got, err := BettorsFor(ctx, wagers, "a", AllIn, 0, accounts)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, []model.Bettor{
				{DisplayName: "bob", Rank: 7},
				{DisplayName: "carol", Rank: 2},
			})
		})

		Convey("all_in should judge on the live balance", func() {
			// carol received funds after placing; she no longer counts as all in.
			accounts["1"] = model.Account{ID: "1", DisplayName: "carol", Balance: 6, Rank: 2}
			got, err := BettorsFor(ctx, wagers, "a", AllIn, 0, accounts)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, []model.Bettor{{DisplayName: "bob", Rank: 7}})
		})

		Convey("A participant nobody backed should list nobody", func() {
			got, err := BettorsFor(ctx, wagers, "c", AllBettors, 0, accounts)
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})

		Convey("Lookup failures should be returned", func() {
			delete(accounts, "3")
			_, err := BettorsFor(ctx, wagers, "a", AllBettors, 0, accounts)
			So(err, ShouldNotBeNil)
		})

		Convey("Unknown modes should be rejected", func() {
			_, err := BettorsFor(ctx, wagers, "a", Mode("loud"), 0, accounts)
			So(errors.Is(err, ErrUnknownMode), ShouldBeTrue)
		})
	})
}

func TestParseMode(t *testing.T) {
	Convey("ParseMode should accept configured names", t, func() {
		m, err := ParseMode("all_in")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, AllIn)
		m, err = ParseMode("")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, AllBettors)
		_, err = ParseMode("most")
		So(errors.Is(err, ErrUnknownMode), ShouldBeTrue)
	})
}
