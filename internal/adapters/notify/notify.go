// Package notify announces match document updates to external listeners.
// Each driver wraps one transport; all of them carry the same JSON event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/pkg/metrics"
)

// Supported drivers.
const (
	DriverNone  = "none"
	DriverLog   = "log"
	DriverKafka = "kafka"
	DriverRedis = "redis"
	DriverNATS  = "nats"
)

// EventMatchUpdated is the only event type emitted today.
const EventMatchUpdated = "match.updated"

// Publisher sends match updates and releases its transport on Close.
type Publisher interface {
	PublishMatch(ctx context.Context, m model.Match) error
	Close() error
}

// Event is the payload written to every transport.
type Event struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Match       model.Match `json:"match"`
	PublishedAt time.Time   `json:"published_at"`
}

func newEvent(m model.Match, now time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        EventMatchUpdated,
		Match:       m,
		PublishedAt: now.UTC(),
	}
}

func encode(m model.Match, now time.Time) (Event, []byte, error) {
	ev := newEvent(m, now)
	raw, err := json.Marshal(ev)
	if err != nil {
		return Event{}, nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return ev, raw, nil
}

func record(driver string, err error) {
	if err != nil {
		metrics.RecordNotification(driver, "error")
		return
	}
	metrics.RecordNotification(driver, "ok")
}

// Open builds the publisher for driver. "" and "none" yield a publisher
// that drops everything.
func Open(ctx context.Context, driver string, opts ...Option) (Publisher, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverNone:
		return Nop{}, nil
	case DriverLog:
		return NewLogPublisher(), nil
	case DriverKafka:
		return NewKafkaPublisher(o.kafkaBrokers, o.kafkaTopic)
	case DriverRedis:
		p, err := NewRedisPublisher(ctx, o.redisAddr, o.redisChannel, o.connectTimeout)
		if err != nil {
			return nil, err
		}
		return p, nil
	case DriverNATS:
		p, err := NewNATSPublisher(o.natsURL, o.natsSubject, o.connectTimeout)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// Nop discards every update.
type Nop struct{}

func (Nop) PublishMatch(context.Context, model.Match) error { return nil }
func (Nop) Close() error                                     { return nil }
