// Package ledger owns account balances. Mutations of one account are
// serialized; different accounts proceed in parallel.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/funbet/internal/adapters/repository"
	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/internal/domain/odds"
	"github.com/okian/funbet/pkg/logger"
	"github.com/okian/funbet/pkg/metrics"
)

// Ledger applies debits, credits and payments to persisted accounts.
type Ledger struct {
	store repository.AccountStore
	floor int64
	now   func() time.Time
	log   logger.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a ledger over store.
func New(store repository.AccountStore, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   time.Now,
		log:   logger.Get().Named("ledger"),
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// lock acquires id's mutex and returns its release func.
func (l *Ledger) lock(id string) func() {
	l.locksMu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.locksMu.Unlock()
	m.Lock()
	return m.Unlock
}

func (l *Ledger) load(ctx context.Context, id string) (model.Account, error) {
	a, err := l.store.LoadAccount(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	if err != nil {
		return model.Account{}, err
	}
	return a, nil
}

func (l *Ledger) save(ctx context.Context, a *model.Account) error {
	a.UpdatedAt = l.now()
	if err := l.store.SaveAccount(ctx, *a); err != nil {
		metrics.RecordErrorByComponent("ledger", "store")
		return fmt.Errorf("save account %s: %w", a.ID, err)
	}
	return nil
}

// Open creates an account with a starting balance.
func (l *Ledger) Open(ctx context.Context, id, displayName string, balance int64, permissions ...string) (model.Account, error) {
	if strings.TrimSpace(id) == "" {
		return model.Account{}, ErrInvalidAccountID
	}
	if balance < 0 {
		return model.Account{}, fmt.Errorf("%w: starting balance %d", ErrInvalidAmount, balance)
	}
	unlock := l.lock(id)
	defer unlock()

	_, err := l.store.LoadAccount(ctx, id)
	switch {
	case err == nil:
		return model.Account{}, fmt.Errorf("%w: %s", ErrAccountExists, id)
	case !errors.Is(err, repository.ErrNotFound):
		return model.Account{}, err
	}

	a := model.Account{ID: id, DisplayName: displayName, Balance: balance, Permissions: slices.Clone(permissions)}
	if err := l.save(ctx, &a); err != nil {
		return model.Account{}, err
	}
	metrics.RecordAccountOpened()
	return a, nil
}

// Account returns the stored account.
func (l *Ledger) Account(ctx context.Context, id string) (model.Account, error) {
	return l.load(ctx, id)
}

// Balance returns the stored balance.
func (l *Ledger) Balance(ctx context.Context, id string) (int64, error) {
	a, err := l.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// Hold runs fn with id's balance while no Debit, Credit or Pay can change
// it. fn must not call back into the ledger for the same account.
func (l *Ledger) Hold(ctx context.Context, id string, fn func(balance int64) error) error {
	unlock := l.lock(id)
	defer unlock()

	a, err := l.load(ctx, id)
	if err != nil {
		return err
	}
	return fn(a.Balance)
}

// Balances reads the balances of ids. Unknown ids are reported as zero.
func (l *Ledger) Balances(ctx context.Context, ids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		b, err := l.Balance(ctx, id)
		if errors.Is(err, ErrUnknownAccount) {
			out[id] = 0
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = b
	}
	return out, nil
}

// Debit subtracts amount when the balance covers it; otherwise the balance
// is reset to the bailout floor. Only storage failures are returned.
func (l *Ledger) Debit(ctx context.Context, id string, amount int64) (int64, error) {
	unlock := l.lock(id)
	defer unlock()

	a, err := l.load(ctx, id)
	if err != nil {
		return 0, err
	}
	if a.Balance >= amount {
		a.Balance -= amount
	} else {
		l.log.Info(ctx, "bailout applied",
			logger.String("account_id", id),
			logger.Int64("balance", a.Balance),
			logger.Int64("debit", amount),
			logger.Int64("floor", l.floor))
		metrics.RecordBailout()
		a.Balance = l.floor
	}
	if err := l.save(ctx, &a); err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// Credit adds amount rounded up to whole units.
func (l *Ledger) Credit(ctx context.Context, id string, amount *big.Rat) (int64, error) {
	units := odds.Ceil(amount)
	if units < 0 {
		return 0, fmt.Errorf("%w: credit %s", ErrInvalidAmount, amount.RatString())
	}

	unlock := l.lock(id)
	defer unlock()

	a, err := l.load(ctx, id)
	if err != nil {
		return 0, err
	}
	a.Balance += units
	if err := l.save(ctx, &a); err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// Pay spends amount from the balance and raises the account's rank by the
// same amount.
func (l *Ledger) Pay(ctx context.Context, id string, amount int64) (model.Account, error) {
	if amount < 1 {
		return model.Account{}, fmt.Errorf("%w: payment %d", ErrInvalidAmount, amount)
	}
	unlock := l.lock(id)
	defer unlock()

	a, err := l.load(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	if a.Balance < amount {
		return model.Account{}, fmt.Errorf("%w: payment %d exceeds balance %d", ErrInsufficientFunds, amount, a.Balance)
	}
	a.Balance -= amount
	a.Rank += amount
	if err := l.save(ctx, &a); err != nil {
		return model.Account{}, err
	}
	metrics.RecordPayment()
	return a, nil
}

// Top returns the leaderboard of ranked accounts.
func (l *Ledger) Top(ctx context.Context, n int) ([]model.Account, error) {
	return l.store.TopAccounts(ctx, n)
}
