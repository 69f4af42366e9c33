package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/funbet/internal/domain/model"
)

// RedisStore keeps the match document as a string key and accounts and
// wagers as hashes keyed by account id.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to addr and verifies connectivity.
func NewRedisStore(ctx context.Context, addr string, opts ...Option) (*RedisStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		PoolSize:    o.maxOpenConns,
		DialTimeout: o.connectTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, o.connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, prefix: o.keyPrefix}, nil
}

func (s *RedisStore) key(name string) string { return s.prefix + name }

func (s *RedisStore) LoadMatch(ctx context.Context) (model.Match, error) {
	defer observe("load_match", time.Now())
	raw, err := s.client.Get(ctx, s.key("match")).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Match{}, ErrNotFound
	}
	if err != nil {
		return model.Match{}, fmt.Errorf("load match: %w", err)
	}
	m := model.NewMatch()
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.Match{}, fmt.Errorf("decode match: %w", err)
	}
	return m, nil
}

func (s *RedisStore) SaveMatch(ctx context.Context, m model.Match) error {
	defer observe("save_match", time.Now())
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	if err := s.client.Set(ctx, s.key("match"), raw, 0).Err(); err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadAccount(ctx context.Context, id string) (model.Account, error) {
	defer observe("load_account", time.Now())
	raw, err := s.client.HGet(ctx, s.key("accounts"), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("load account %s: %w", id, err)
	}
	var a model.Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return model.Account{}, fmt.Errorf("decode account %s: %w", id, err)
	}
	return a, nil
}

func (s *RedisStore) SaveAccount(ctx context.Context, a model.Account) error {
	defer observe("save_account", time.Now())
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", a.ID, err)
	}
	if err := s.client.HSet(ctx, s.key("accounts"), a.ID, raw).Err(); err != nil {
		return fmt.Errorf("save account %s: %w", a.ID, err)
	}
	return nil
}

// TopAccounts loads every account and sorts client-side so ties order the
// same way as the other stores.
func (s *RedisStore) TopAccounts(ctx context.Context, n int) ([]model.Account, error) {
	defer observe("top_accounts", time.Now())
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	all, err := s.client.HGetAll(ctx, s.key("accounts")).Result()
	if err != nil {
		return nil, fmt.Errorf("top accounts: %w", err)
	}
	out := make([]model.Account, 0, len(all))
	for id, raw := range all {
		var a model.Account
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("decode account %s: %w", id, err)
		}
		out = append(out, a)
	}
	sortAccounts(out)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *RedisStore) CountAccounts(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.key("accounts")).Result()
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) SaveWager(ctx context.Context, w model.Wager) error {
	defer observe("save_wager", time.Now())
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wager %s: %w", w.AccountID, err)
	}
	if err := s.client.HSet(ctx, s.key("wagers"), w.AccountID, raw).Err(); err != nil {
		return fmt.Errorf("save wager %s: %w", w.AccountID, err)
	}
	return nil
}

func (s *RedisStore) LoadWagers(ctx context.Context) ([]model.Wager, error) {
	defer observe("load_wagers", time.Now())
	all, err := s.client.HGetAll(ctx, s.key("wagers")).Result()
	if err != nil {
		return nil, fmt.Errorf("load wagers: %w", err)
	}
	out := make([]model.Wager, 0, len(all))
	for id, raw := range all {
		var w model.Wager
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return nil, fmt.Errorf("decode wager %s: %w", id, err)
		}
		out = append(out, w)
	}
	sortWagers(out)
	return out, nil
}

func (s *RedisStore) DeleteWagers(ctx context.Context) error {
	defer observe("delete_wagers", time.Now())
	if err := s.client.Del(ctx, s.key("wagers")).Err(); err != nil {
		return fmt.Errorf("delete wagers: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the connection so the notifier can share it.
func (s *RedisStore) Client() *redis.Client { return s.client }
