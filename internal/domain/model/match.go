// Package model contains domain models passed between layers.
package model

import "time"

// Status is the lifecycle state of the match.
type Status string

// Match statuses. The string values are the wire representation.
const (
	StatusClosed     Status = "closed"
	StatusOpen       Status = "open"
	StatusInProgress Status = "inProgress"
	StatusPayout     Status = "payout"
)

// TieKey is the reserved winner value meaning nobody won.
const TieKey = "tie"

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusClosed, StatusOpen, StatusInProgress, StatusPayout}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusClosed, StatusOpen, StatusInProgress, StatusPayout:
		return true
	}
	return false
}

// Participant is one side of the match that can be wagered on.
type Participant struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
	Odds   string `json:"odds"`
}

// Bettor is a display row for a participant's backers.
type Bettor struct {
	DisplayName string `json:"display_name"`
	Rank        int64  `json:"rank"`
}

// Match is the single persisted match document.
type Match struct {
	Status       Status                 `json:"status"`
	Winner       string                 `json:"winner,omitempty"`
	Participants map[string]Participant `json:"participants"`
	Bettors      map[string][]Bettor    `json:"bettors"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// NewMatch returns the empty closed document used before anything is stored.
func NewMatch() Match {
	return Match{
		Status:       StatusClosed,
		Participants: map[string]Participant{},
		Bettors:      map[string][]Bettor{},
	}
}

// Keys returns the participant keys of the document.
func (m Match) Keys() []string {
	keys := make([]string, 0, len(m.Participants))
	for k := range m.Participants {
		keys = append(keys, k)
	}
	return keys
}

// Clone returns a deep copy so callers can't mutate shared maps.
func (m Match) Clone() Match {
	out := m
	out.Participants = make(map[string]Participant, len(m.Participants))
	for k, p := range m.Participants {
		out.Participants[k] = p
	}
	out.Bettors = make(map[string][]Bettor, len(m.Bettors))
	for k, list := range m.Bettors {
		cp := make([]Bettor, len(list))
		copy(cp, list)
		out.Bettors[k] = cp
	}
	return out
}
