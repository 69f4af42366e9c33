package ledger

import "time"

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithBailoutFloor sets the balance a debit larger than the balance resets to.
func WithBailoutFloor(floor int64) Option {
	return func(l *Ledger) {
		if floor >= 0 {
			l.floor = floor
		}
	}
}

// WithClock overrides the timestamp source for account updates.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}
