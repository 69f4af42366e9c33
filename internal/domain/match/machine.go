// Package match drives the match document through its lifecycle:
// closed -> open -> inProgress -> payout -> closed, with cancellation from
// open or inProgress back to closed.
package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/funbet/internal/adapters/repository"
	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/internal/domain/odds"
	"github.com/okian/funbet/internal/domain/wagerbook"
	"github.com/okian/funbet/pkg/logger"
	"github.com/okian/funbet/pkg/metrics"
)

const defaultPublishTimeout = 2 * time.Second

// Enqueuer accepts settlement jobs without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, job model.SettlementJob) bool
}

// Publisher announces document updates.
type Publisher interface {
	PublishMatch(ctx context.Context, m model.Match) error
}

// Machine validates and applies transitions to the single match document.
// Transitions are serialized by mu.
type Machine struct {
	mu      sync.Mutex
	doc     model.Match
	pending *model.SettlementJob

	store    repository.MatchStore
	book     *wagerbook.Book
	accounts wagerbook.AccountLookup

	mode           wagerbook.Mode
	limit          int
	enqueuer       Enqueuer
	publisher      Publisher
	publishTimeout time.Duration
	now            func() time.Time
	log            logger.Logger
}

// New creates a machine holding an empty closed document. Call Load to
// pick up the persisted one.
func New(store repository.MatchStore, book *wagerbook.Book, accounts wagerbook.AccountLookup, opts ...Option) *Machine {
	m := &Machine{
		doc:            model.NewMatch(),
		store:          store,
		book:           book,
		accounts:       accounts,
		mode:           wagerbook.AllBettors,
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
		log:            logger.Get().Named("match"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads the persisted document and restores the wager book to match
// it. A document left in payout is not settled again.
func (m *Machine) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.store.LoadMatch(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		doc = model.NewMatch()
	case err != nil:
		return fmt.Errorf("load match: %w", err)
	}
	if doc.Participants == nil {
		doc.Participants = map[string]model.Participant{}
	}
	if doc.Bettors == nil {
		doc.Bettors = map[string][]model.Bettor{}
	}
	m.doc = doc

	n, err := m.book.Restore(ctx, doc.Keys(), doc.Status == model.StatusOpen)
	if err != nil {
		return fmt.Errorf("restore book: %w", err)
	}
	metrics.UpdateMatchStatus(string(doc.Status), statusNames())
	m.log.Info(ctx, "match loaded",
		logger.String("status", string(doc.Status)),
		logger.Int("participants", len(doc.Participants)),
		logger.Int("wagers", n))

	if doc.Status == model.StatusPayout {
		// Some deltas of the interrupted pass may already be applied.
		metrics.RecordErrorByComponent("match", "stuck_payout")
		m.log.Error(ctx, "match persisted in payout, settlement needs manual recovery",
			logger.String("winner", doc.Winner),
			logger.Int("wagers", n))
	}
	return nil
}

// Current returns a copy of the document.
func (m *Machine) Current() model.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}

// Pending returns the most recently queued settlement job.
func (m *Machine) Pending() (model.SettlementJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return model.SettlementJob{}, false
	}
	return *m.pending, true
}

// Propose applies the transition from old to proposed. old must carry the
// stored status. Names and the winner are taken from proposed; pools, odds
// and bettors are always recomputed.
func (m *Machine) Propose(ctx context.Context, old, proposed model.Match, isAdmin bool) (model.Match, error) {
	from, to := old.Status, proposed.Status
	if !isAdmin {
		metrics.RecordTransition(string(from), string(to), "not_authorized")
		return model.Match{}, ErrNotAuthorized
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		next model.Match
		err  error
	)
	switch {
	case from != m.doc.Status:
		err = fmt.Errorf("%w: stale document, stored status is %s", ErrInvalidTransition, m.doc.Status)
	case from == model.StatusClosed && to == model.StatusOpen:
		next, err = m.openBidding(ctx, proposed)
	case from == model.StatusOpen && to == model.StatusInProgress:
		next, err = m.closeBidding(ctx, proposed)
	case from == model.StatusInProgress && to == model.StatusPayout:
		next, err = m.startPayout(ctx, proposed)
	case from == model.StatusOpen && to == model.StatusClosed:
		next, err = m.cancelOpen(ctx, proposed)
	case from == model.StatusInProgress && to == model.StatusClosed:
		next, err = m.cancelInProgress(ctx, proposed)
	default:
		err = fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	metrics.RecordTransition(string(from), string(to), resultOf(err))
	if err != nil {
		m.log.Warn(ctx, "transition rejected",
			logger.String("from", string(from)),
			logger.String("to", string(to)),
			logger.Error(err))
		return model.Match{}, err
	}
	m.log.Info(ctx, "transition applied", logger.String("from", string(from)), logger.String("to", string(to)))
	return next.Clone(), nil
}

func (m *Machine) openBidding(ctx context.Context, proposed model.Match) (model.Match, error) {
	if len(proposed.Participants) == 0 {
		return model.Match{}, fmt.Errorf("%w: roster is empty", ErrInvalidTransition)
	}
	next := model.NewMatch()
	next.Status = model.StatusOpen
	for k, p := range proposed.Participants {
		if k == "" || k == model.TieKey {
			return model.Match{}, fmt.Errorf("%w: participant key %q is reserved", ErrInvalidTransition, k)
		}
		next.Participants[k] = model.Participant{Name: p.Name}
		next.Bettors[k] = []model.Bettor{}
	}
	if err := m.commit(ctx, next); err != nil {
		return model.Match{}, err
	}
	m.book.Open(next.Keys())
	return next, nil
}

func (m *Machine) closeBidding(ctx context.Context, proposed model.Match) (model.Match, error) {
	snap := m.book.Close()

	next := m.doc.Clone()
	next.Status = model.StatusInProgress
	trustNames(&next, proposed)

	keys := sortedKeys(next)
	pools := wagerbook.PoolsOf(keys, snap)
	ratios := odds.ComputeOdds(pools)
	for _, k := range keys {
		bettors, err := wagerbook.BettorsFor(ctx, snap, k, m.mode, m.limit, m.accounts)
		if err != nil {
			m.book.Reopen()
			return model.Match{}, fmt.Errorf("list bettors: %w", err)
		}
		p := next.Participants[k]
		p.Amount = pools[k]
		p.Odds = ratios[k]
		next.Participants[k] = p
		next.Bettors[k] = bettors
	}

	if err := m.commit(ctx, next); err != nil {
		m.book.Reopen()
		return model.Match{}, err
	}
	metrics.UpdatePools(pools)
	return next, nil
}

func (m *Machine) startPayout(ctx context.Context, proposed model.Match) (model.Match, error) {
	winner := proposed.Winner
	if _, ok := m.doc.Participants[winner]; !ok && winner != model.TieKey {
		return model.Match{}, fmt.Errorf("%w: %q", ErrInvalidWinner, winner)
	}
	if m.enqueuer == nil {
		return model.Match{}, ErrSettlementUnavailable
	}

	prev := m.doc.Clone()
	next := m.doc.Clone()
	next.Status = model.StatusPayout
	next.Winner = winner
	trustNames(&next, proposed)
	if err := m.commit(ctx, next); err != nil {
		return model.Match{}, err
	}

	job := model.NewSettlementJob(winner)
	if !m.enqueuer.Enqueue(ctx, job) {
		if err := m.commit(ctx, prev); err != nil {
			m.log.Error(ctx, "could not revert payout after enqueue failure", logger.Error(err))
		}
		return model.Match{}, ErrSettlementUnavailable
	}
	m.pending = &job
	return next, nil
}

func (m *Machine) cancelOpen(ctx context.Context, proposed model.Match) (model.Match, error) {
	m.book.Close()
	next := m.cancelledDoc(proposed)
	if err := m.commit(ctx, next); err != nil {
		m.book.Reopen()
		return model.Match{}, err
	}
	m.clearBook(ctx)
	return next, nil
}

func (m *Machine) cancelInProgress(ctx context.Context, proposed model.Match) (model.Match, error) {
	next := m.cancelledDoc(proposed)
	if err := m.commit(ctx, next); err != nil {
		return model.Match{}, err
	}
	m.clearBook(ctx)
	return next, nil
}

// CompleteSettlement moves a payout document to closed. It is the only way
// out of payout and is called by the settlement orchestrator once the
// ledger has been updated and the book cleared.
func (m *Machine) CompleteSettlement(ctx context.Context) (model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.doc.Status != model.StatusPayout {
		return model.Match{}, fmt.Errorf("%w: settlement completed while %s", ErrInvalidTransition, m.doc.Status)
	}
	next := m.doc.Clone()
	next.Status = model.StatusClosed
	if err := m.commit(ctx, next); err != nil {
		metrics.RecordTransition(string(model.StatusPayout), string(model.StatusClosed), "store_error")
		return model.Match{}, err
	}
	metrics.RecordTransition(string(model.StatusPayout), string(model.StatusClosed), "ok")
	return next.Clone(), nil
}

// cancelledDoc ends the round without a winner. Pools and odds stay as
// they were; bettor lists are emptied along with the book.
func (m *Machine) cancelledDoc(proposed model.Match) model.Match {
	next := m.doc.Clone()
	next.Status = model.StatusClosed
	next.Winner = ""
	trustNames(&next, proposed)
	for k := range next.Participants {
		next.Bettors[k] = []model.Bettor{}
	}
	return next
}

func (m *Machine) clearBook(ctx context.Context) {
	if err := m.book.Clear(ctx); err != nil {
		m.log.Error(ctx, "clearing wager journal failed", logger.Error(err))
	}
}

// commit persists next and makes it current. Must be called with m.mu held.
func (m *Machine) commit(ctx context.Context, next model.Match) error {
	next.UpdatedAt = m.now()
	if err := m.store.SaveMatch(ctx, next); err != nil {
		metrics.RecordErrorByComponent("match", "store")
		return fmt.Errorf("save match: %w", err)
	}
	m.doc = next
	metrics.RecordMatchUpdate()
	metrics.UpdateMatchStatus(string(next.Status), statusNames())
	m.publish(ctx, next)
	return nil
}

func (m *Machine) publish(ctx context.Context, doc model.Match) {
	if m.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.publishTimeout)
	defer cancel()
	if err := m.publisher.PublishMatch(pctx, doc.Clone()); err != nil {
		m.log.Warn(ctx, "match notification failed", logger.Error(err))
	}
}

// trustNames copies display names for known keys from proposed.
func trustNames(next *model.Match, proposed model.Match) {
	for k, p := range next.Participants {
		if q, ok := proposed.Participants[k]; ok && q.Name != "" {
			p.Name = q.Name
			next.Participants[k] = p
		}
	}
}

func sortedKeys(doc model.Match) []string {
	keys := doc.Keys()
	sort.Strings(keys)
	return keys
}

func statusNames() []string {
	all := model.Statuses()
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = string(s)
	}
	return out
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrInvalidWinner):
		return "invalid_winner"
	case errors.Is(err, ErrSettlementUnavailable):
		return "settlement_unavailable"
	default:
		return "error"
	}
}
