package model

import "time"

// Wager is an account's outstanding stake on one participant.
type Wager struct {
	AccountID      string    `json:"account_id"`
	ParticipantKey string    `json:"participant"`
	Amount         int64     `json:"amount"`
	PlacedAt       time.Time `json:"placed_at"`
}
