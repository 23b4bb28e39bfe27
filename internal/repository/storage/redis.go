package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
)

const DefaultMaxTxRetries = 10

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStorage(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return conn, nil
}

// RunTx - runs fn with the keys watched. A write by another client between WATCH and EXEC
// aborts the attempt and fn runs again against fresh state.
func RunTx(ctx context.Context, client *redis.Client, maxRetries int, fn func(tx *redis.Tx) error, keys ...string) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxTxRetries
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return fmt.Errorf("%w: %d attempts on %v", apperror.ErrTransactionAborted, maxRetries, keys)
}
