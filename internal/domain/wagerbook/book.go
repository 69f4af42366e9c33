// Package wagerbook holds the outstanding wagers of the current match and
// the bidding window that guards them.
package wagerbook

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/pkg/logger"
	"github.com/okian/funbet/pkg/metrics"
)

// Journal persists the book. repository.Store satisfies it.
type Journal interface {
	SaveWager(ctx context.Context, w model.Wager) error
	LoadWagers(ctx context.Context) ([]model.Wager, error)
	DeleteWagers(ctx context.Context) error
}

// Receipt describes an accepted wager.
type Receipt struct {
	Wager    model.Wager
	Replaced bool
}

// Book is the set of outstanding wagers, at most one per account.
// A single mutex covers the wager map, the roster and the window flag so
// that placement and close are totally ordered.
type Book struct {
	mu     sync.Mutex
	open   bool
	keys   map[string]struct{}
	wagers map[string]model.Wager

	journal Journal
	now     func() time.Time
	log     logger.Logger
}

// New returns an empty, closed book.
func New(opts ...Option) *Book {
	b := &Book{
		keys:   make(map[string]struct{}),
		wagers: make(map[string]model.Wager),
		now:    time.Now,
		log:    logger.Get().Named("wagerbook"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open sets the roster and opens the bidding window.
func (b *Book) Open(keys []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		b.keys[k] = struct{}{}
	}
	b.open = true
}

// Close shuts the window and returns the wagers as of that instant.
// Any Place that has not acquired the lock yet will see the window closed.
func (b *Book) Close() []model.Wager {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	return b.snapshotLocked()
}

// Reopen reopens the window after a failed close, keeping the roster.
func (b *Book) Reopen() {
	b.mu.Lock()
	b.open = true
	b.mu.Unlock()
}

// IsOpen reports the window state.
func (b *Book) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Funds gives the book a stable view of an account's balance while a
// wager is judged.
type Funds interface {
	Hold(ctx context.Context, accountID string, fn func(balance int64) error) error
}

// fixedBalance is a Funds that always reports the same balance.
type fixedBalance int64

func (f fixedBalance) Hold(_ context.Context, _ string, fn func(int64) error) error {
	return fn(int64(f))
}

// Place records or replaces accountID's wager against a balance the caller
// has already read.
func (b *Book) Place(ctx context.Context, accountID, key string, amount float64, balance int64) (Receipt, error) {
	return b.PlaceFunded(ctx, accountID, key, amount, fixedBalance(balance))
}

// PlaceFunded records or replaces accountID's wager. The window is checked
// first. The wager is then judged and stored while funds holds the
// account's balance, so it never exceeds the balance it landed against.
func (b *Book) PlaceFunded(ctx context.Context, accountID, key string, amount float64, funds Funds) (Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		metrics.RecordWagerRejected("bidding_closed")
		return Receipt{}, ErrBiddingClosed
	}
	var receipt Receipt
	err := funds.Hold(ctx, accountID, func(balance int64) error {
		var err error
		receipt, err = b.placeLocked(ctx, accountID, key, amount, balance)
		return err
	})
	return receipt, err
}

func (b *Book) placeLocked(ctx context.Context, accountID, key string, amount float64, balance int64) (Receipt, error) {
	units, ok := wholeUnits(amount)
	if !ok {
		metrics.RecordWagerRejected("invalid_amount")
		return Receipt{}, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if _, ok := b.keys[key]; !ok {
		metrics.RecordWagerRejected("invalid_participant")
		return Receipt{}, fmt.Errorf("%w: %q", ErrInvalidParticipant, key)
	}
	if units > balance {
		metrics.RecordWagerRejected("insufficient_funds")
		return Receipt{}, fmt.Errorf("%w: wager %d exceeds balance %d", ErrInsufficientFunds, units, balance)
	}

	w := model.Wager{AccountID: accountID, ParticipantKey: key, Amount: units, PlacedAt: b.now()}
	if b.journal != nil {
		if err := b.journal.SaveWager(ctx, w); err != nil {
			metrics.RecordErrorByComponent("wagerbook", "journal")
			return Receipt{}, fmt.Errorf("journal wager: %w", err)
		}
	}
	_, replaced := b.wagers[accountID]
	b.wagers[accountID] = w

	metrics.RecordWagerPlaced(key, replaced)
	metrics.UpdateBookSize(len(b.wagers))
	return Receipt{Wager: w, Replaced: replaced}, nil
}

// wholeUnits accepts finite integral amounts of at least one unit.
func wholeUnits(amount float64) (int64, bool) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 1 || amount != math.Trunc(amount) {
		return 0, false
	}
	if amount >= math.MaxInt64 {
		return 0, false
	}
	return int64(amount), true
}

// PoolFor sums the wagers on key.
func (b *Book) PoolFor(key string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total int64
	for _, w := range b.wagers {
		if w.ParticipantKey == key {
			total += w.Amount
		}
	}
	return total
}

// Pools sums wagers per roster key; keys nobody backed map to zero.
func (b *Book) Pools() map[string]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return poolsOf(b.keys, b.wagers)
}

// PoolsOf computes per-key totals over a wager snapshot.
func PoolsOf(keys []string, wagers []model.Wager) map[string]int64 {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	byAccount := make(map[string]model.Wager, len(wagers))
	for _, w := range wagers {
		byAccount[w.AccountID] = w
	}
	return poolsOf(set, byAccount)
}

func poolsOf(keys map[string]struct{}, wagers map[string]model.Wager) map[string]int64 {
	out := make(map[string]int64, len(keys))
	for k := range keys {
		out[k] = 0
	}
	for _, w := range wagers {
		if _, ok := keys[w.ParticipantKey]; ok {
			out[w.ParticipantKey] += w.Amount
		}
	}
	return out
}

// Snapshot returns the wagers ordered by account id.
func (b *Book) Snapshot() []model.Wager {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Book) snapshotLocked() []model.Wager {
	out := make([]model.Wager, 0, len(b.wagers))
	for _, w := range b.wagers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// Len returns the number of outstanding wagers.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.wagers)
}

// Clear empties the book and its journal. The in-memory book is emptied even
// when the journal fails.
func (b *Book) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wagers = make(map[string]model.Wager)
	metrics.UpdateBookSize(0)
	if b.journal == nil {
		return nil
	}
	if err := b.journal.DeleteWagers(ctx); err != nil {
		metrics.RecordErrorByComponent("wagerbook", "journal")
		return fmt.Errorf("clear journal: %w", err)
	}
	return nil
}

// Restore reloads journaled wagers for roster keys and sets the window.
// Used on startup so a restart does not lose the book.
func (b *Book) Restore(ctx context.Context, keys []string, open bool) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.keys = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		b.keys[k] = struct{}{}
	}
	b.open = open
	b.wagers = make(map[string]model.Wager)
	if b.journal == nil {
		return 0, nil
	}

	ws, err := b.journal.LoadWagers(ctx)
	if err != nil {
		return 0, fmt.Errorf("load journal: %w", err)
	}
	for _, w := range ws {
		if _, ok := b.keys[w.ParticipantKey]; !ok {
			b.log.Warn(ctx, "dropping journaled wager for unknown participant",
				logger.String("account_id", w.AccountID), logger.String("participant", w.ParticipantKey))
			continue
		}
		b.wagers[w.AccountID] = w
	}
	metrics.UpdateBookSize(len(b.wagers))
	return len(b.wagers), nil
}
