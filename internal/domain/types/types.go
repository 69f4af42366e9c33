// Package types contains read shapes shared by the service and its clients.
package types

import "github.com/okian/funbet/internal/domain/model"

// Entry is one leaderboard row. Position is 1-based.
type Entry struct {
	Position    int    `json:"position"`
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Rank        int64  `json:"rank"`
}

// EntriesFrom numbers accounts already in leaderboard order.
func EntriesFrom(accounts []model.Account) []Entry {
	out := make([]Entry, len(accounts))
	for i, a := range accounts {
		out[i] = Entry{
			Position:    i + 1,
			AccountID:   a.ID,
			DisplayName: a.DisplayName,
			Rank:        a.Rank,
		}
	}
	return out
}
