package types_test

import (
	"testing"

	"github.com/okian/funbet/internal/domain/model"
	types "github.com/okian/funbet/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntriesFrom(t *testing.T) {
	Convey("Given accounts in leaderboard order", t, func() {
		accounts := []model.Account{
			{ID: "2", DisplayName: "amy", Rank: 9, Balance: 1},
			{ID: "1", DisplayName: "zed", Rank: 3, Balance: 40},
		}

		Convey("When converting to entries", func() {
			entries := types.EntriesFrom(accounts)

			Convey("Then positions should be 1-based and balances left out", func() {
				So(entries, ShouldResemble, []types.Entry{
					{Position: 1, AccountID: "2", DisplayName: "amy", Rank: 9},
					{Position: 2, AccountID: "1", DisplayName: "zed", Rank: 3},
				})
			})
		})

		Convey("When there are no accounts", func() {
			Convey("Then the result should be empty but not nil", func() {
				entries := types.EntriesFrom(nil)
				So(entries, ShouldNotBeNil)
				So(entries, ShouldBeEmpty)
			})
		})
	})
}
