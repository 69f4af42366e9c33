package wagerbook

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/funbet/internal/domain/model"
)

// Mode selects which wagers are listed as bettors.
type Mode string

const (
	// AllBettors lists every account backing the participant.
	AllBettors Mode = "all_bettors"
	// AllIn lists accounts whose wager equals their balance at listing time.
	// Balances are read live, so an account that spent or received funds
	// since placing is judged on the new balance.
	AllIn Mode = "all_in"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case AllBettors, AllIn:
		return Mode(s), nil
	case "":
		return AllBettors, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// AccountLookup resolves account display data. The ledger satisfies it.
type AccountLookup interface {
	Account(ctx context.Context, id string) (model.Account, error)
}

// BettorsFor lists the backers of key in wagers, ordered by rank desc then
// display name asc. limit <= 0 lists all of them.
func BettorsFor(ctx context.Context, wagers []model.Wager, key string, mode Mode, limit int, lookup AccountLookup) ([]model.Bettor, error) {
	type row struct {
		id string
		b  model.Bettor
	}
	rows := make([]row, 0)
	for _, w := range wagers {
		if w.ParticipantKey != key {
			continue
		}
		a, err := lookup.Account(ctx, w.AccountID)
		if err != nil {
			return nil, fmt.Errorf("bettor %s: %w", w.AccountID, err)
		}
		switch mode {
		case AllBettors:
		case AllIn:
			if w.Amount != a.Balance {
				continue
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
		}
		rows = append(rows, row{id: w.AccountID, b: model.Bettor{DisplayName: a.DisplayName, Rank: a.Rank}})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].b.Rank != rows[j].b.Rank {
			return rows[i].b.Rank > rows[j].b.Rank
		}
		if rows[i].b.DisplayName != rows[j].b.DisplayName {
			return rows[i].b.DisplayName < rows[j].b.DisplayName
		}
		return rows[i].id < rows[j].id
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]model.Bettor, len(rows))
	for i, r := range rows {
		out[i] = r.b
	}
	return out, nil
}

// BettorsFor lists the backers of key over the current book.
func (b *Book) BettorsFor(ctx context.Context, key string, mode Mode, limit int, lookup AccountLookup) ([]model.Bettor, error) {
	return BettorsFor(ctx, b.Snapshot(), key, mode, limit, lookup)
}
