package wagerbook

import "time"

// Option applies a configuration option to the Book.
type Option func(*Book)

// WithJournal persists every accepted wager and every clear.
func WithJournal(j Journal) Option {
	return func(b *Book) {
		if j != nil {
			b.journal = j
		}
	}
}

// WithClock overrides the placement timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Book) {
		if now != nil {
			b.now = now
		}
	}
}
