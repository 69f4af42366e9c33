package notify

import (
	"context"
	"time"

	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/pkg/logger"
)

// LogPublisher writes each update to the structured log.
type LogPublisher struct {
	log logger.Logger
	now func() time.Time
}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{log: logger.Named("notify"), now: time.Now}
}

func (p *LogPublisher) PublishMatch(ctx context.Context, m model.Match) error {
	ev := newEvent(m, p.now())
	p.log.Info(ctx, "match updated",
		logger.String("event_id", ev.ID),
		logger.String("status", string(m.Status)),
		logger.String("winner", m.Winner),
		logger.Int("participants", len(m.Participants)))
	record(DriverLog, nil)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
