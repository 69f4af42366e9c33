package repository

import "time"

// Option applies a configuration option to a store constructor.
type Option func(*options)

type options struct {
	maxOpenConns   int
	connectTimeout time.Duration
	keyPrefix      string
}

func defaultOptions() options {
	return options{
		maxOpenConns:   8,
		connectTimeout: 5 * time.Second,
		keyPrefix:      "funbet:",
	}
}

// WithMaxOpenConns caps the SQL connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithConnectTimeout bounds the initial connectivity check.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}
