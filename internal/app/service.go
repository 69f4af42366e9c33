// Package service wires the exchange components together and exposes the
// operations the HTTP API depends on.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/funbet/internal/adapters/mq/queue"
	"github.com/okian/funbet/internal/adapters/mq/worker"
	"github.com/okian/funbet/internal/adapters/repository"
	"github.com/okian/funbet/internal/domain/dedupe"
	"github.com/okian/funbet/internal/domain/ledger"
	"github.com/okian/funbet/internal/domain/match"
	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/internal/domain/settlement"
	"github.com/okian/funbet/internal/domain/types"
	"github.com/okian/funbet/internal/domain/wagerbook"
	"github.com/okian/funbet/pkg/logger"
	"github.com/okian/funbet/pkg/metrics"
)

// Service owns the single match and everything needed to trade on it.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	publisher match.Publisher
	ledger    *ledger.Ledger
	book      *wagerbook.Book
	machine   *match.Machine
	settler   *settlement.Orchestrator
	jobs      *queue.InMemoryQueue
	worker    *worker.InMemoryWorker
	payments  dedupe.Deduper

	// Configuration
	bailoutFloor    int64
	bettorMode      wagerbook.Mode
	bettorLimit     int
	queueSize       int
	dedupeSize      int
	degradedAfter   time.Duration
	startingBalance int64

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPublisher sets where match updates are announced.
func WithPublisher(p match.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithBailoutFloor sets the balance a losing account drops to when it can
// no longer cover its wager.
func WithBailoutFloor(floor int64) Option {
	return func(s *Service) {
		if floor >= 0 {
			s.bailoutFloor = floor
		}
	}
}

// WithBettorMode selects which backers the match document lists.
func WithBettorMode(mode wagerbook.Mode) Option {
	return func(s *Service) {
		if mode != "" {
			s.bettorMode = mode
		}
	}
}

// WithBettorLimit caps the bettors listed per participant.
func WithBettorLimit(n int) Option {
	return func(s *Service) {
		s.bettorLimit = n
	}
}

// WithQueueSize sets the capacity of the settlement queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many payment idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDegradedAfter sets how long the match may sit in payout before the
// service reports itself degraded.
func WithDegradedAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.degradedAfter = d
		}
	}
}

// WithStartingBalance sets the balance given to accounts opened without one.
func WithStartingBalance(balance int64) Option {
	return func(s *Service) {
		if balance >= 0 {
			s.startingBalance = balance
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		bettorMode:      wagerbook.AllBettors,
		bettorLimit:     10,
		queueSize:       16,
		dedupeSize:      10000,
		degradedAfter:   30 * time.Second,
		startingBalance: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components, restores persisted state and starts the
// settlement worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}

	s.ledger = ledger.New(s.store, ledger.WithBailoutFloor(s.bailoutFloor))
	s.book = wagerbook.New(wagerbook.WithJournal(s.store))
	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.payments = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	machineOpts := []match.Option{
		match.WithBettorMode(s.bettorMode),
		match.WithBettorLimit(s.bettorLimit),
		match.WithEnqueuer(s.jobs),
	}
	if s.publisher != nil {
		machineOpts = append(machineOpts, match.WithPublisher(s.publisher))
	}
	s.machine = match.New(s.store, s.book, s.ledger, machineOpts...)
	s.settler = settlement.New(s.store, s.book, s.ledger, s.machine)
	s.worker = worker.NewInMemoryWorker(s.jobs, s.settler)

	if err := s.machine.Load(ctx); err != nil {
		_ = s.jobs.Close()
		return fmt.Errorf("restore match: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.worker.Run(runCtx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "exchange service started",
		logger.String("bettor_mode", string(s.bettorMode)),
		logger.Int("bettor_limit", s.bettorLimit),
		logger.Int("queue_size", s.queueSize),
		logger.Int64("bailout_floor", s.bailoutFloor),
	)
	return nil
}

// Stop waits for the settlement pass in progress, if any, then releases
// the store and the publisher.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping exchange service...")

	var firstErr error
	if err := s.worker.Shutdown(ctx); err != nil {
		firstErr = err
	}
	s.cancel()
	_ = s.jobs.Close()

	if closer, ok := s.publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close publisher: %w", err)
		}
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}

	s.started = false
	s.logger.Info(ctx, "exchange service stopped")
	return firstErr
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// BiddingOpen reports whether wagers are currently accepted.
func (s *Service) BiddingOpen() bool {
	return s.running() && s.book.IsOpen()
}

// PlaceWager records or replaces the account's wager against its current
// balance. A closed window is reported before the account is looked up.
func (s *Service) PlaceWager(ctx context.Context, accountID, participantKey string, amount float64) (model.Wager, error) {
	if !s.running() {
		return model.Wager{}, match.ErrNotStarted
	}
	receipt, err := s.book.PlaceFunded(ctx, accountID, participantKey, amount, s.ledger)
	if err != nil {
		s.logger.Debug(ctx, "wager rejected",
			logger.String("account_id", accountID),
			logger.String("participant", participantKey),
			logger.Error(err))
		return model.Wager{}, err
	}
	s.logger.Debug(ctx, "wager placed",
		logger.String("account_id", accountID),
		logger.String("participant", participantKey),
		logger.Int64("amount", receipt.Wager.Amount),
		logger.Any("replaced", receipt.Replaced))
	return receipt.Wager, nil
}

// ProposeTransition hands the proposal to the match machine.
func (s *Service) ProposeTransition(ctx context.Context, oldDoc, newDoc model.Match, requesterIsAdmin bool) (model.Match, error) {
	if !s.running() {
		return model.Match{}, match.ErrNotStarted
	}
	return s.machine.Propose(ctx, oldDoc, newDoc, requesterIsAdmin)
}

// CurrentMatchDocument returns a copy of the stored match.
func (s *Service) CurrentMatchDocument() model.Match {
	if !s.running() {
		return model.NewMatch()
	}
	return s.machine.Current()
}

// AwaitSettlement blocks until the most recently requested settlement has
// been processed or ctx ends.
func (s *Service) AwaitSettlement(ctx context.Context) (model.SettlementOutcome, error) {
	if !s.running() {
		return model.SettlementOutcome{}, match.ErrNotStarted
	}
	job, ok := s.machine.Pending()
	if !ok {
		return model.SettlementOutcome{}, match.ErrNoSettlement
	}
	return job.Wait(ctx)
}

// OpenAccount creates an account. A zero balance selects the configured
// starting balance.
func (s *Service) OpenAccount(ctx context.Context, id, displayName string, balance int64, admin bool) (model.Account, error) {
	if !s.running() {
		return model.Account{}, match.ErrNotStarted
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Account{}, ledger.ErrInvalidAccountID
	}
	if balance == 0 {
		balance = s.startingBalance
	}
	if displayName == "" {
		displayName = id
	}
	var perms []string
	if admin {
		perms = append(perms, model.PermissionAdmin)
	}
	a, err := s.ledger.Open(ctx, id, displayName, balance, perms...)
	if err != nil {
		return model.Account{}, err
	}
	s.logger.Info(ctx, "account opened", logger.String("account_id", id), logger.Int64("balance", balance))
	return a, nil
}

// Account returns the stored account.
func (s *Service) Account(ctx context.Context, id string) (model.Account, error) {
	if !s.running() {
		return model.Account{}, match.ErrNotStarted
	}
	return s.ledger.Account(ctx, id)
}

// Pay makes a ranked payment. A non-empty idempotencyKey already used by the
// same account is rejected with ledger.ErrDuplicatePayment; a failed payment frees
// its key again.
func (s *Service) Pay(ctx context.Context, accountID string, amount int64, idempotencyKey string) (model.Account, error) {
	if !s.running() {
		return model.Account{}, match.ErrNotStarted
	}
	var key string
	if idempotencyKey != "" {
		key = accountID + "/" + idempotencyKey
		if s.payments.SeenAndRecord(ctx, key) {
			s.logger.Debug(ctx, "duplicate payment skipped",
				logger.String("account_id", accountID),
				logger.String("idempotency_key", idempotencyKey))
			return model.Account{}, ledger.ErrDuplicatePayment
		}
	}
	a, err := s.ledger.Pay(ctx, accountID, amount)
	if err != nil {
		if key != "" {
			s.payments.Unrecord(ctx, key)
		}
		return model.Account{}, err
	}
	return a, nil
}

// Leaderboard returns up to n accounts by rank.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	if !s.running() {
		return nil, match.ErrNotStarted
	}
	accounts, err := s.ledger.Top(ctx, n)
	if err != nil {
		return nil, err
	}
	return types.EntriesFrom(accounts), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"queueSize":   s.queueSize,
		"bettorMode":  string(s.bettorMode),
		"bettorLimit": s.bettorLimit,
		"dedupeSize":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	doc := s.machine.Current()
	queueLen := s.jobs.Len(ctx)
	stats["status"] = string(doc.Status)
	stats["biddingOpen"] = s.book.IsOpen()
	stats["bookSize"] = s.book.Len()
	stats["queueLength"] = queueLen
	stats["settlementState"] = s.settler.State().String()
	stats["idempotencyKeys"] = s.payments.Size()
	stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	stats["degraded"] = doc.Status == model.StatusPayout && time.Since(doc.UpdatedAt) > s.degradedAfter

	if n, err := s.store.CountAccounts(ctx); err == nil {
		stats["totalAccounts"] = n
	} else {
		s.logger.Warn(ctx, "counting accounts failed", logger.Error(err))
	}

	metrics.UpdateBookSize(s.book.Len())
	return stats
}
