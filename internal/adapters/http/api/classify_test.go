package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/okian/funbet/internal/domain/ledger"
	"github.com/okian/funbet/internal/domain/match"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassifyDomainErrors(t *testing.T) {
	Convey("Given wrapped domain sentinels", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{match.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			{ledger.ErrDuplicatePayment, http.StatusConflict, "duplicate"},
			{ledger.ErrInvalidAccountID, http.StatusBadRequest, "bad_request"},
			{ledger.ErrUnknownAccount, http.StatusNotFound, "not_found"},
		}
		for _, tc := range cases {
			Convey("Then "+tc.err.Error()+" should map to "+tc.code, func() {
				status, code := classify(Wrap("op", fmt.Errorf("ctx: %w", tc.err)))
				So(status, ShouldEqual, tc.status)
				So(code, ShouldEqual, tc.code)
			})
		}
	})
}
