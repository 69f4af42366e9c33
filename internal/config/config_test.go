package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/funbet/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.BettorStrategy, convey.ShouldEqual, "all_bettors")
			convey.So(cfg.SettlementQueueSize, convey.ShouldEqual, 16)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
			convey.So(cfg.NotifyDriver, convey.ShouldEqual, "none")
			convey.So(cfg.PayoutDegradedAfter(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.ShutdownTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad setting", t, func() {
		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }},
			{"negative floor", func(c *config.Config) { c.BailoutFloor = -1 }},
			{"zero queue", func(c *config.Config) { c.SettlementQueueSize = 0 }},
			{"unknown strategy", func(c *config.Config) { c.BettorStrategy = "loudest" }},
			{"unknown store", func(c *config.Config) { c.StoreDriver = "mongo" }},
			{"postgres without dsn", func(c *config.Config) { c.StoreDriver = "postgres" }},
			{"kafka without brokers", func(c *config.Config) { c.NotifyDriver = "kafka" }},
			{"nats without url", func(c *config.Config) { c.NotifyDriver = "nats" }},
			{"unknown notifier", func(c *config.Config) { c.NotifyDriver = "pager" }},
		}
		for _, tc := range cases {
			convey.Convey("Then "+tc.name+" should be invalid", func() {
				cfg := config.New()
				tc.mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})

	convey.Convey("Given driver specific settings", t, func() {
		cfg := config.New()
		cfg.StoreDriver = "sqlite"
		cfg.SQLitePath = "/tmp/x.db"
		cfg.NotifyDriver = "kafka"
		cfg.KafkaBrokers = " k1:9092, ,k2:9092 "

		convey.So(cfg.Validate(), convey.ShouldBeNil)
		convey.So(cfg.StoreTarget(), convey.ShouldEqual, "/tmp/x.db")
		convey.So(cfg.Brokers(), convey.ShouldResemble, []string{"k1:9092", "k2:9092"})
	})
}

func TestConfig_Metrics(t *testing.T) {
	convey.Convey("Given metrics settings", t, func() {
		cfg := config.New()

		convey.Convey("Then the defaults should keep the stock names and buckets", func() {
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "funbet")
			convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "exchange")
			convey.So(cfg.MetricsRefresh(), convey.ShouldEqual, 10*time.Second)
			b, err := cfg.HistogramBuckets()
			convey.So(err, convey.ShouldBeNil)
			convey.So(b, convey.ShouldBeEmpty)
			l, err := cfg.ConstLabels()
			convey.So(err, convey.ShouldBeNil)
			convey.So(l, convey.ShouldBeEmpty)
		})

		convey.Convey("When buckets and labels are listed", func() {
			cfg.MetricsBuckets = " 10, 0.5 ,2.5"
			cfg.MetricsLabels = "env = prod, region=eu_1"

			convey.Convey("Then they should parse sorted and trimmed", func() {
				b, err := cfg.HistogramBuckets()
				convey.So(err, convey.ShouldBeNil)
				convey.So(b, convey.ShouldResemble, []float64{0.5, 2.5, 10})
				l, err := cfg.ConstLabels()
				convey.So(err, convey.ShouldBeNil)
				convey.So(l, convey.ShouldResemble, map[string]string{"env": "prod", "region": "eu_1"})
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("Then malformed values should be invalid", func() {
			cases := []func(c *config.Config){
				func(c *config.Config) { c.MetricsBuckets = "1,x" },
				func(c *config.Config) { c.MetricsBuckets = "0" },
				func(c *config.Config) { c.MetricsBuckets = "1,1" },
				func(c *config.Config) { c.MetricsLabels = "env" },
				func(c *config.Config) { c.MetricsLabels = "9env=x" },
				func(c *config.Config) { c.MetricsLabels = "__name__=x" },
				func(c *config.Config) { c.MetricsLabels = "a=1,a=2" },
				func(c *config.Config) { c.MetricsRefreshMS = 0 },
			}
			for _, mutate := range cases {
				c := config.New()
				mutate(c)
				convey.So(errors.Is(c.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})
	})
}
