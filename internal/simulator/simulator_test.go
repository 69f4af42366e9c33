package simulator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/funbet/internal/adapters/http/api"
	service "github.com/okian/funbet/internal/app"
	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startServer(ctx context.Context) (*service.Service, *httptest.Server) {
	svc := service.New()
	convey.So(svc.Start(ctx), convey.ShouldBeNil)
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	return svc, httptest.NewServer(mux)
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.Accounts = 12
	cfg.Workers = 3
	cfg.Seed = 42
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func TestRunRound(t *testing.T) {
	convey.Convey("Given a running server with a closed match", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		svc, srv := startServer(ctx)
		convey.Reset(func() {
			srv.Close()
			_ = svc.Stop(context.Background())
			cancel()
		})

		convey.Convey("A seeded round should settle exactly as forecast", func() {
			cfg := testConfig(srv.URL)
			cfg.Winner = "home"

			rep, err := Run(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(rep.Mismatches, convey.ShouldBeEmpty)
			convey.So(rep.Winner, convey.ShouldEqual, "home")
			convey.So(rep.WagersPlaced, convey.ShouldEqual, cfg.Accounts)
			convey.So(rep.WagersRejected, convey.ShouldEqual, 0)
			convey.So(rep.Pools, convey.ShouldContainKey, "home")
			convey.So(rep.Pools, convey.ShouldContainKey, "away")
			convey.So(svc.CurrentMatchDocument().Status, convey.ShouldEqual, model.StatusClosed)
		})

		convey.Convey("A tie should leave every balance untouched", func() {
			cfg := testConfig(srv.URL)
			cfg.Winner = model.TieKey

			rep, err := Run(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(rep.TotalAfter, convey.ShouldEqual, rep.TotalBefore)
		})

		convey.Convey("Two rounds in a row should both verify", func() {
			cfg := testConfig(srv.URL)
			_, err := Run(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)

			cfg.Seed = 7
			_, err = Run(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
		})

		convey.Convey("A round should refuse to start while bidding is open", func() {
			next := model.NewMatch()
			next.Status = model.StatusOpen
			next.Participants["home"] = model.Participant{Name: "home"}
			next.Participants["away"] = model.Participant{Name: "away"}
			_, err := svc.ProposeTransition(ctx, svc.CurrentMatchDocument(), next, true)
			convey.So(err, convey.ShouldBeNil)

			_, err = Run(ctx, testConfig(srv.URL))
			convey.So(errors.Is(err, ErrMatchBusy), convey.ShouldBeTrue)
		})
	})
}

func TestRunUnreachable(t *testing.T) {
	convey.Convey("Given a server that is gone", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		_, err := Run(context.Background(), testConfig(srv.URL))
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, "health check")
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given simulator configs", t, func() {
		convey.So(DefaultConfig().Validate(), convey.ShouldBeNil)

		bad := []func(*Config){
			func(c *Config) { c.BaseURL = "" },
			func(c *Config) { c.AdminID = "" },
			func(c *Config) { c.Accounts = 0 },
			func(c *Config) { c.StartingBalance = 0 },
			func(c *Config) { c.Workers = 0 },
			func(c *Config) { c.AmendRate = 1.5 },
			func(c *Config) { c.Participants = []string{"solo"} },
			func(c *Config) { c.PollInterval = 0 },
			func(c *Config) { c.Winner = "nobody" },
		}
		for _, mutate := range bad {
			cfg := DefaultConfig()
			mutate(&cfg)
			convey.So(errors.Is(cfg.Validate(), ErrInvalidConfig), convey.ShouldBeTrue)
		}

		cfg := DefaultConfig()
		cfg.Winner = model.TieKey
		convey.So(cfg.Validate(), convey.ShouldBeNil)
	})
}

func TestForecast(t *testing.T) {
	convey.Convey("Given the two account round", t, func() {
		plan := []plannedWager{
			{accountID: "L", key: "b", amounts: []int64{10}, standing: 10},
			{accountID: "W", key: "a", amounts: []int64{1}, standing: 1},
		}
		pools := map[string]int64{"a": 1, "b": 10}
		balances := map[string]int64{"L": 21, "W": 10}

		convey.Convey("A win for a should move ten from L to W", func() {
			out, err := forecast("a", pools, plan, balances)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out["L"], convey.ShouldEqual, 11)
			convey.So(out["W"], convey.ShouldEqual, 20)
		})

		convey.Convey("Accounts with nothing accepted should be left out", func() {
			withIdle := append([]plannedWager{{accountID: "I", key: "a", amounts: []int64{3}}}, plan...)
			idle := map[string]int64{"L": 21, "W": 10, "I": 5}
			out, err := forecast("a", pools, withIdle, idle)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out["I"], convey.ShouldEqual, 5)
		})

		convey.Convey("Pools that disagree with the wagers should fail", func() {
			_, err := forecast("a", map[string]int64{"a": 2, "b": 10}, plan, balances)
			convey.So(errors.Is(err, ErrVerification), convey.ShouldBeTrue)
		})
	})
}

func TestPrintReport(t *testing.T) {
	convey.Convey("Given a report with a mismatch", t, func() {
		var b strings.Builder
		PrintReport(&b, Report{
			RoundID:    "r1",
			Winner:     "a",
			Pools:      map[string]int64{"a": 1, "b": 10},
			Odds:       map[string]string{"a": "1:10", "b": "10:1"},
			Mismatches: []Mismatch{{AccountID: "L", Expected: 11, Actual: 12}},
		})
		out := b.String()
		convey.So(out, convey.ShouldContainSubstring, "winner=a")
		convey.So(out, convey.ShouldContainSubstring, "odds=1:10")
		convey.So(out, convey.ShouldContainSubstring, "MISMATCH L expected=11 actual=12")

		var help strings.Builder
		ShowHelp(&help)
		convey.So(help.String(), convey.ShouldContainSubstring, "-participants")
	})
}
