package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/pkg/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// matchKey is the key of every match message. There is one match, so one
// key pins every update to one partition and keeps them in order.
const matchKey = "match"

// KafkaPublisher writes one message per update to the partition chosen by
// hashing matchKey.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    logger.Logger
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("%w: kafka brokers and topic are required", ErrMissingTarget)
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
	return newKafkaPublisher(w, topic), nil
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, log: logger.Named("notify.kafka"), now: time.Now}
}

func (p *KafkaPublisher) PublishMatch(ctx context.Context, m model.Match) (err error) {
	defer func() { record(DriverKafka, err) }()

	ev, raw, err := encode(m, p.now())
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(matchKey),
		Value: raw,
		Time:  ev.PublishedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.ID)},
		},
	}
	if err = p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error(ctx, "failed to publish match update", logger.String("topic", p.topic), logger.Error(err))
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	p.log.Debug(ctx, "published match update", logger.String("event_id", ev.ID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
