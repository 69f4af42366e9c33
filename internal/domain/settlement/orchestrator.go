// Package settlement pays out the match: it moves the losing pools to the
// winners through the ledger, empties the book and closes the match.
package settlement

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/okian/funbet/internal/adapters/repository"
	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/internal/domain/odds"
	"github.com/okian/funbet/internal/domain/wagerbook"
	"github.com/okian/funbet/pkg/logger"
	"github.com/okian/funbet/pkg/metrics"
)

// State of the orchestrator.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Ledger applies balance changes.
type Ledger interface {
	Balances(ctx context.Context, ids []string) (map[string]int64, error)
	Debit(ctx context.Context, id string, amount int64) (int64, error)
	Credit(ctx context.Context, id string, amount *big.Rat) (int64, error)
}

// Book exposes the wagers being settled.
type Book interface {
	Snapshot() []model.Wager
	Clear(ctx context.Context) error
}

// Completer moves the match from payout to closed.
type Completer interface {
	CompleteSettlement(ctx context.Context) (model.Match, error)
}

// Orchestrator runs settlement passes one at a time.
type Orchestrator struct {
	store  repository.MatchStore
	book   Book
	ledger Ledger
	match  Completer
	state  atomic.Int32
	log    logger.Logger
}

// New creates an idle orchestrator.
func New(store repository.MatchStore, book Book, ledger Ledger, match Completer) *Orchestrator {
	return &Orchestrator{
		store:  store,
		book:   book,
		ledger: ledger,
		match:  match,
		log:    logger.Get().Named("settlement"),
	}
}

// State reports whether a pass is running.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Settle runs one pass for job and resolves it with the outcome. Failures
// are logged and reported on the outcome; the pass is never retried and a
// failed pass leaves the match in payout.
func (o *Orchestrator) Settle(ctx context.Context, job model.SettlementJob) (out model.SettlementOutcome) {
	start := time.Now()
	out = model.SettlementOutcome{JobID: job.ID, Winner: job.Winner}
	defer func() {
		out.Duration = time.Since(start)
		job.Resolve(out)
	}()

	if !o.state.CompareAndSwap(int32(Idle), int32(Running)) {
		out.Err = ErrBusy
		return out
	}
	defer o.state.Store(int32(Idle))

	out = o.run(ctx, out)
	result := "ok"
	switch {
	case out.Err != nil:
		result = "failed"
		metrics.RecordErrorByComponent("settlement", "pass_failed")
		o.log.Error(ctx, "settlement failed", logger.String("job_id", job.ID), logger.Error(out.Err))
	case !out.Settled:
		result = "noop"
	default:
		o.log.Info(ctx, "settlement complete",
			logger.String("job_id", job.ID),
			logger.String("winner", out.Winner),
			logger.Int("credits", out.Credits),
			logger.Int("debits", out.Debits),
			logger.Int("skipped", out.Skipped))
	}
	metrics.RecordSettlement(result, time.Since(start), out.Credits, out.Debits, out.Skipped)
	return out
}

func (o *Orchestrator) run(ctx context.Context, out model.SettlementOutcome) model.SettlementOutcome {
	doc, err := o.store.LoadMatch(ctx)
	if err != nil {
		out.Err = fmt.Errorf("load match: %w", err)
		return out
	}
	if doc.Status != model.StatusPayout {
		o.log.Warn(ctx, "settlement requested outside payout, ignoring", logger.String("status", string(doc.Status)))
		return out
	}
	out.Winner = doc.Winner

	wagers := o.book.Snapshot()
	ids := make([]string, len(wagers))
	for i, w := range wagers {
		ids[i] = w.AccountID
	}
	balances, err := o.ledger.Balances(ctx, ids)
	if err != nil {
		out.Err = fmt.Errorf("%w: read balances: %w", ErrLedger, err)
		return out
	}

	payout := odds.ComputePayout(doc.Winner, wagerbook.PoolsOf(doc.Keys(), wagers), wagers, balances)
	for _, w := range payout.Skipped {
		o.log.Warn(ctx, "skipping wager, balance below stake",
			logger.String("account_id", w.AccountID),
			logger.Int64("amount", w.Amount),
			logger.Int64("balance", balances[w.AccountID]))
	}
	out.Skipped = len(payout.Skipped)

	for _, d := range payout.Deltas {
		switch d.Kind {
		case odds.Credit:
			_, err = o.ledger.Credit(ctx, d.AccountID, new(big.Rat).SetInt64(d.Amount))
			if err == nil {
				out.Credits++
			}
		case odds.Debit:
			_, err = o.ledger.Debit(ctx, d.AccountID, d.Amount)
			if err == nil {
				out.Debits++
			}
		}
		if err != nil {
			out.Err = fmt.Errorf("%w: %s %d on %s: %w", ErrLedger, d.Kind, d.Amount, d.AccountID, err)
			return out
		}
	}

	if err := o.book.Clear(ctx); err != nil {
		o.log.Error(ctx, "clearing book after settlement", logger.Error(err))
	}
	if _, err := o.match.CompleteSettlement(ctx); err != nil {
		out.Err = fmt.Errorf("%w: %w", ErrNotCompleted, err)
		return out
	}
	out.Settled = true
	return out
}
