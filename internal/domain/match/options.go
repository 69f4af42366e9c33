package match

import (
	"time"

	"github.com/okian/funbet/internal/domain/wagerbook"
)

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithBettorMode selects which backers are listed when bidding closes.
func WithBettorMode(mode wagerbook.Mode) Option {
	return func(m *Machine) {
		if mode != "" {
			m.mode = mode
		}
	}
}

// WithBettorLimit caps the bettor listing per participant; <= 0 lists all.
func WithBettorLimit(n int) Option {
	return func(m *Machine) {
		m.limit = n
	}
}

// WithEnqueuer sets where settlement jobs are sent.
func WithEnqueuer(e Enqueuer) Option {
	return func(m *Machine) {
		if e != nil {
			m.enqueuer = e
		}
	}
}

// WithPublisher sets where document updates are announced.
func WithPublisher(p Publisher) Option {
	return func(m *Machine) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithPublishTimeout bounds each announcement.
func WithPublishTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.publishTimeout = d
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}
