package model

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SettlementJob asks the background worker to settle the match. Copies of a
// job share one completion state, so any holder can Wait for the outcome.
type SettlementJob struct {
	ID          string
	Winner      string
	RequestedAt time.Time

	result *settlementResult
}

type settlementResult struct {
	once    sync.Once
	done    chan struct{}
	outcome SettlementOutcome
}

// NewSettlementJob creates a job with a fresh id.
func NewSettlementJob(winner string) SettlementJob {
	return SettlementJob{
		ID:          uuid.NewString(),
		Winner:      winner,
		RequestedAt: time.Now(),
		result:      &settlementResult{done: make(chan struct{})},
	}
}

// Resolve records the outcome. Only the first call has an effect.
func (j SettlementJob) Resolve(o SettlementOutcome) {
	if j.result == nil {
		return
	}
	j.result.once.Do(func() {
		o.JobID = j.ID
		j.result.outcome = o
		close(j.result.done)
	})
}

// Done is closed once the job is resolved.
func (j SettlementJob) Done() <-chan struct{} {
	if j.result == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return j.result.done
}

// Wait blocks until the job is resolved or ctx ends.
func (j SettlementJob) Wait(ctx context.Context) (SettlementOutcome, error) {
	select {
	case <-j.Done():
		if j.result == nil {
			return SettlementOutcome{}, nil
		}
		return j.result.outcome, nil
	case <-ctx.Done():
		return SettlementOutcome{}, ctx.Err()
	}
}

// SettlementOutcome reports what a settlement pass did.
type SettlementOutcome struct {
	JobID    string
	Winner   string
	Settled  bool // false when the pass was a no-op or aborted
	Credits  int
	Debits   int
	Skipped  int
	Duration time.Duration
	Err      error
}
