package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/okian/funbet/internal/domain/model"
)

type natsConn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes updates on a core NATS subject and flushes so
// a returned nil means the server has the message.
type NATSPublisher struct {
	conn    natsConn
	subject string
	now     func() time.Time
}

func NewNATSPublisher(url, subject string, timeout time.Duration) (*NATSPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: nats url is required", ErrMissingTarget)
	}
	nc, err := nats.Connect(url,
		nats.Name("funbet"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newNATSPublisher(nc, subject), nil
}

func newNATSPublisher(c natsConn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: c, subject: subject, now: time.Now}
}

func (p *NATSPublisher) PublishMatch(ctx context.Context, m model.Match) (err error) {
	defer func() { record(DriverNATS, err) }()

	_, raw, err := encode(m, p.now())
	if err != nil {
		return err
	}
	if err = p.conn.Publish(p.subject, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	if err = p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrPublish, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
