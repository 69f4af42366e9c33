// Package worker runs settlement jobs off the queue in the background.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/pkg/logger"
	"github.com/okian/funbet/pkg/metrics"
)

// Job abstracts what workers read off the queue.
type Job = model.SettlementJob

// Settler runs one settlement pass and resolves the job.
type Settler interface {
	Settle(ctx context.Context, job model.SettlementJob) model.SettlementOutcome
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes settlement jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the pass in progress, if any.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker runs jobs one at a time, in queue order.
type InMemoryWorker struct {
	queue   Queue
	settler Settler
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, settler Settler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		settler:  settler,
		name:     "settlement-worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	// Passes are not cancelled mid-way; only the wait for the next job is.
	runCtx := context.WithoutCancel(ctx)
	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(runCtx, job)
		}
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job Job) {
	w.logger.Info(ctx, "settlement started",
		logger.String("job_id", job.ID),
		logger.String("winner", job.Winner))
	out := w.settler.Settle(ctx, job)
	if out.Err != nil {
		metrics.RecordErrorByComponent("worker", "settlement")
		w.logger.Error(ctx, "settlement job failed",
			logger.String("job_id", job.ID),
			logger.Error(out.Err))
		return
	}
	w.logger.Debug(ctx, "settlement job finished",
		logger.String("job_id", job.ID),
		logger.Any("duration", out.Duration.String()))
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
