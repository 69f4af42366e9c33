// Package repository persists the match document, accounts and outstanding wagers.
package repository

import (
	"context"

	"github.com/okian/funbet/internal/domain/model"
)

// MatchStore holds the single match document.
type MatchStore interface {
	// LoadMatch returns ErrNotFound when no document was ever saved.
	LoadMatch(ctx context.Context) (model.Match, error)
	SaveMatch(ctx context.Context, m model.Match) error
}

// AccountStore holds account balances and ranks.
type AccountStore interface {
	// LoadAccount returns ErrNotFound for unknown ids.
	LoadAccount(ctx context.Context, id string) (model.Account, error)
	SaveAccount(ctx context.Context, a model.Account) error
	// TopAccounts returns up to n accounts ordered by rank desc, display name asc, id asc.
	TopAccounts(ctx context.Context, n int) ([]model.Account, error)
	CountAccounts(ctx context.Context) (int, error)
}

// WagerStore journals outstanding wagers so the book survives restarts.
type WagerStore interface {
	SaveWager(ctx context.Context, w model.Wager) error
	LoadWagers(ctx context.Context) ([]model.Wager, error)
	DeleteWagers(ctx context.Context) error
}

// Store is the full persistence surface used by the service.
type Store interface {
	MatchStore
	AccountStore
	WagerStore
	Close() error
}
