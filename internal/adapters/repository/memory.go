package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/pkg/metrics"
)

// MemoryStore is the in-process Store used by default and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	match    *model.Match
	accounts map[string]model.Account
	ranks    *rankIndex
	wagers   map[string]model.Wager
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]model.Account),
		ranks:    newRankIndex(),
		wagers:   make(map[string]model.Wager),
	}
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func (s *MemoryStore) LoadMatch(_ context.Context) (model.Match, error) {
	defer observe("load_match", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.match == nil {
		return model.Match{}, ErrNotFound
	}
	return s.match.Clone(), nil
}

func (s *MemoryStore) SaveMatch(_ context.Context, m model.Match) error {
	defer observe("save_match", time.Now())
	cp := m.Clone()
	s.mu.Lock()
	s.match = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadAccount(_ context.Context, id string) (model.Account, error) {
	defer observe("load_account", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, ErrNotFound
	}
	a.Permissions = slices.Clone(a.Permissions)
	return a, nil
}

func (s *MemoryStore) SaveAccount(_ context.Context, a model.Account) error {
	defer observe("save_account", time.Now())
	a.Permissions = slices.Clone(a.Permissions)
	s.mu.Lock()
	s.accounts[a.ID] = a
	s.ranks.upsert(a.ID, a.DisplayName, a.Rank)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) TopAccounts(_ context.Context, n int) ([]model.Account, error) {
	defer observe("top_accounts", time.Now())
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.ranks.top(n)
	out := make([]model.Account, 0, len(ids))
	for _, id := range ids {
		a := s.accounts[id]
		a.Permissions = slices.Clone(a.Permissions)
		out = append(out, a)
	}
	return out, nil
}

func (s *MemoryStore) CountAccounts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ranks.size(), nil
}

func (s *MemoryStore) SaveWager(_ context.Context, w model.Wager) error {
	defer observe("save_wager", time.Now())
	s.mu.Lock()
	s.wagers[w.AccountID] = w
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadWagers(_ context.Context) ([]model.Wager, error) {
	defer observe("load_wagers", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Wager, 0, len(s.wagers))
	for _, w := range s.wagers {
		out = append(out, w)
	}
	sortWagers(out)
	return out, nil
}

func (s *MemoryStore) DeleteWagers(_ context.Context) error {
	defer observe("delete_wagers", time.Now())
	s.mu.Lock()
	s.wagers = make(map[string]model.Wager)
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

func sortWagers(ws []model.Wager) {
	slices.SortFunc(ws, func(a, b model.Wager) int {
		switch {
		case a.AccountID < b.AccountID:
			return -1
		case a.AccountID > b.AccountID:
			return 1
		}
		return 0
	})
}

// sortAccounts orders accounts for the leaderboard.
func sortAccounts(as []model.Account) {
	slices.SortFunc(as, func(a, b model.Account) int {
		ka := rankKey{rank: a.Rank, name: a.DisplayName, id: a.ID}
		kb := rankKey{rank: b.Rank, name: b.DisplayName, id: b.ID}
		switch {
		case ka.less(kb):
			return -1
		case kb.less(ka):
			return 1
		}
		return 0
	})
}
