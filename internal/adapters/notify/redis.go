package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/funbet/internal/domain/model"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher sends updates on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redisPublisher
	channel string
	now     func() time.Time
}

func NewRedisPublisher(ctx context.Context, addr, channel string, timeout time.Duration) (*RedisPublisher, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: redis address is required", ErrMissingTarget)
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: timeout})
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisPublisher(client, channel), nil
}

func newRedisPublisher(c redisPublisher, channel string) *RedisPublisher {
	return &RedisPublisher{client: c, channel: channel, now: time.Now}
}

func (p *RedisPublisher) PublishMatch(ctx context.Context, m model.Match) (err error) {
	defer func() { record(DriverRedis, err) }()

	_, raw, err := encode(m, p.now())
	if err != nil {
		return err
	}
	if err = p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
