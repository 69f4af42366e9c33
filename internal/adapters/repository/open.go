package repository

import (
	"context"
	"fmt"
)

// Store drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
)

// Open builds the Store for driver. target is the DSN, file path or address
// the driver needs; the memory driver ignores it.
func Open(ctx context.Context, driver, target string, opts ...Option) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverPostgres:
		return NewPostgresStore(ctx, target, opts...)
	case DriverSQLite:
		return NewSQLiteStore(ctx, target, opts...)
	case DriverRedis:
		s, err := NewRedisStore(ctx, target, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, driver)
	}
}
