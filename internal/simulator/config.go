// Package simulator plays one full round against a running funbet server
// over HTTP and checks that settlement moved exactly the expected funds.
package simulator

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/okian/funbet/internal/domain/model"
)

// Sentinel kinds for simulator errors.
var (
	ErrInvalidConfig = errors.New("invalid simulator config")
	ErrMatchBusy     = errors.New("match is not closed")
	ErrUnexpected    = errors.New("unexpected response")
	ErrVerification  = errors.New("verification failed")
)

// Config holds configuration for a simulated round.
type Config struct {
	BaseURL         string        // Base URL of the service
	AdminID         string        // Account id presented as admin
	Accounts        int           // Number of accounts to open
	StartingBalance int64         // Minimum starting balance per account
	Workers         int           // Concurrent wager submitters
	AmendRate       float64       // Share of accounts that amend their wager once
	Participants    []string      // Roster keys
	Winner          string        // Winner key; empty picks one at random
	Seed            uint64        // Seed for the round plan
	Timeout         time.Duration // HTTP request timeout
	PollInterval    time.Duration // Interval between settlement checks
	Verbose         bool          // Log every wager
}

// DefaultConfig returns a round of 50 accounts on two participants.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:9080",
		AdminID:         "sim-admin",
		Accounts:        50,
		StartingBalance: 20,
		Workers:         8,
		AmendRate:       0.3,
		Participants:    []string{"home", "away"},
		Timeout:         10 * time.Second,
		PollInterval:    50 * time.Millisecond,
	}
}

// Report summarises a round.
type Report struct {
	RoundID         string
	Winner          string
	Pools           map[string]int64
	Odds            map[string]string
	WagersPlaced    int
	WagersAmended   int
	WagersRejected  int
	TotalBefore     int64
	TotalAfter      int64
	Mismatches      []Mismatch
	SettlementDelay time.Duration
	Duration        time.Duration
}

// Mismatch is an account whose settled balance differs from the forecast.
type Mismatch struct {
	AccountID string
	Expected  int64
	Actual    int64
}

// Validate checks that the round can be planned.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.AdminID == "":
		return fmt.Errorf("%w: admin id is required", ErrInvalidConfig)
	case c.Accounts < 1:
		return fmt.Errorf("%w: accounts must be positive", ErrInvalidConfig)
	case c.StartingBalance < 1:
		return fmt.Errorf("%w: starting balance must be positive", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.AmendRate < 0 || c.AmendRate > 1:
		return fmt.Errorf("%w: amend rate must be within [0, 1]", ErrInvalidConfig)
	case len(c.Participants) < 2:
		return fmt.Errorf("%w: at least two participants are required", ErrInvalidConfig)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.Winner != "" && c.Winner != model.TieKey && !slices.Contains(c.Participants, c.Winner) {
		return fmt.Errorf("%w: winner %q is not a participant", ErrInvalidConfig, c.Winner)
	}
	return nil
}
