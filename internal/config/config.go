// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/okian/funbet/internal/domain/wagerbook"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// BailoutFloor is the balance a loser drops to when it cannot cover its wager.
	BailoutFloor int64 `koanf:"bailout_floor"`

	// BettorStrategy selects who is listed per participant: all_bettors or all_in.
	BettorStrategy string `koanf:"bettor_strategy"`

	// BettorDisplayCount caps the bettors listed per participant.
	BettorDisplayCount int `koanf:"bettor_display_count"`

	// SettlementQueueSize bounds pending settlement jobs.
	SettlementQueueSize int `koanf:"settlement_queue_size"`

	// PayoutDegradedAfterMS marks the service degraded when payout lasts longer.
	PayoutDegradedAfterMS int `koanf:"payout_degraded_after_ms"`

	// DedupeSize is how many payment idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// StartingBalance is given to accounts opened without an explicit balance.
	StartingBalance int64 `koanf:"starting_balance"`

	// StoreDriver is one of memory, postgres, sqlite, redis.
	StoreDriver string `koanf:"store_driver"`
	PostgresDSN string `koanf:"postgres_dsn"`
	SQLitePath  string `koanf:"sqlite_path"`
	RedisAddr   string `koanf:"redis_addr"`

	// NotifyDriver is one of none, log, kafka, redis, nats.
	NotifyDriver string `koanf:"notify_driver"`
	// KafkaBrokers is a comma separated broker list.
	KafkaBrokers string `koanf:"kafka_brokers"`
	KafkaTopic   string `koanf:"kafka_topic"`
	RedisChannel string `koanf:"redis_channel"`
	NATSURL      string `koanf:"nats_url"`
	NATSSubject  string `koanf:"nats_subject"`

	// ShutdownTimeoutMS bounds graceful shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`

	// MetricsEnabled turns the Prometheus recorders on or off.
	MetricsEnabled   bool   `koanf:"metrics_enabled"`
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
	MetricsPrefix    string `koanf:"metrics_prefix"`

	// MetricsBuckets is a comma separated list of latency buckets; empty keeps the defaults.
	MetricsBuckets string `koanf:"metrics_buckets"`

	// MetricsLabels is a comma separated list of name=value constant labels.
	MetricsLabels string `koanf:"metrics_labels"`

	// MetricsRefreshMS is how often the system gauges are sampled.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		BailoutFloor:          0,
		BettorStrategy:        string(wagerbook.AllBettors),
		BettorDisplayCount:    10,
		SettlementQueueSize:   16,
		PayoutDegradedAfterMS: 30_000,
		DedupeSize:            10_000,
		MaxLeaderboardLimit:   100,
		StartingBalance:       100,
		StoreDriver:           "memory",
		SQLitePath:            "funbet.db",
		NotifyDriver:          "none",
		KafkaTopic:            "funbet.match",
		RedisChannel:          "funbet:match",
		NATSSubject:           "funbet.match.updated",
		ShutdownTimeoutMS:     10_000,
		MetricsEnabled:        true,
		MetricsNamespace:      "funbet",
		MetricsSubsystem:      "exchange",
		MetricsRefreshMS:      10_000,
	}
}

// Brokers splits KafkaBrokers.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// PayoutDegradedAfter returns PayoutDegradedAfterMS as a duration.
func (c *Config) PayoutDegradedAfter() time.Duration {
	return time.Duration(c.PayoutDegradedAfterMS) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// MetricsRefresh returns MetricsRefreshMS as a duration.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshMS) * time.Millisecond
}

// HistogramBuckets parses MetricsBuckets. Buckets must be positive and
// distinct; they are returned sorted.
func (c *Config) HistogramBuckets() ([]float64, error) {
	var out []float64
	for _, raw := range strings.Split(c.MetricsBuckets, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%w: metrics_buckets: bad bucket %q", ErrInvalidConfig, raw)
		}
		if slices.Contains(out, v) {
			return nil, fmt.Errorf("%w: metrics_buckets: duplicate bucket %q", ErrInvalidConfig, raw)
		}
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}

// ConstLabels parses MetricsLabels into a label map.
func (c *Config) ConstLabels() (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(c.MetricsLabels, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || !validLabelName(name) {
			return nil, fmt.Errorf("%w: metrics_labels: bad label %q", ErrInvalidConfig, pair)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("%w: metrics_labels: duplicate label %q", ErrInvalidConfig, name)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}

// validLabelName follows the Prometheus label grammar; names starting with
// "__" are reserved.
func validLabelName(name string) bool {
	if name == "" || strings.HasPrefix(name, "__") {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// StoreTarget returns the connection target for the selected store driver.
func (c *Config) StoreTarget() string {
	switch c.StoreDriver {
	case "postgres":
		return c.PostgresDSN
	case "sqlite":
		return c.SQLitePath
	case "redis":
		return c.RedisAddr
	default:
		return ""
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.BailoutFloor < 0:
		return fmt.Errorf("%w: bailout_floor must not be negative", ErrInvalidConfig)
	case c.SettlementQueueSize < 1:
		return fmt.Errorf("%w: settlement_queue_size must be positive", ErrInvalidConfig)
	case c.PayoutDegradedAfterMS < 1:
		return fmt.Errorf("%w: payout_degraded_after_ms must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.StartingBalance < 0:
		return fmt.Errorf("%w: starting_balance must not be negative", ErrInvalidConfig)
	case c.MetricsRefreshMS < 1:
		return fmt.Errorf("%w: metrics_refresh_ms must be positive", ErrInvalidConfig)
	}
	if _, err := c.HistogramBuckets(); err != nil {
		return err
	}
	if _, err := c.ConstLabels(); err != nil {
		return err
	}
	if _, err := wagerbook.ParseMode(c.BettorStrategy); err != nil {
		return fmt.Errorf("%w: bettor_strategy: %v", ErrInvalidConfig, err)
	}

	switch c.StoreDriver {
	case "memory":
	case "postgres", "sqlite", "redis":
		if c.StoreTarget() == "" {
			return fmt.Errorf("%w: store_driver %s needs its connection setting", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	switch c.NotifyDriver {
	case "none", "log":
	case "kafka":
		if len(c.Brokers()) == 0 {
			return fmt.Errorf("%w: notify_driver kafka needs kafka_brokers", ErrInvalidConfig)
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: notify_driver redis needs redis_addr", ErrInvalidConfig)
		}
	case "nats":
		if c.NATSURL == "" {
			return fmt.Errorf("%w: notify_driver nats needs nats_url", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown notify_driver %q", ErrInvalidConfig, c.NotifyDriver)
	}
	return nil
}
