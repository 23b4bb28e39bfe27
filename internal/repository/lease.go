package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// renewScript and releaseScript only touch the lease while it still carries the caller's token.
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
)

// Lease - an expiring key held by at most one process at a time.
type Lease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// LeaseRepository hands out leases on a single key.
type LeaseRepository interface {
	Acquire(ctx context.Context, ttl time.Duration) (*Lease, bool, error)
}

type dbLease struct {
	client *redis.Client
	key    string
}

func NewLeaseRepository(client *redis.Client, key string) LeaseRepository {
	return &dbLease{
		client: client,
		key:    key,
	}
}

// Acquire - returns ok=false when another holder owns the key.
func (that *dbLease) Acquire(ctx context.Context, ttl time.Duration) (*Lease, bool, error) {
	token := uuid.NewString()

	ok, err := that.client.SetNX(ctx, that.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", that.key, err)
	}

	if !ok {
		return nil, false, nil
	}

	return &Lease{
		client: that.client,
		key:    that.key,
		token:  token,
		ttl:    ttl,
	}, true, nil
}

// Renew - pushes the expiry out by the lease TTL. Returns false once the lease was lost.
func (that *Lease) Renew(ctx context.Context) (bool, error) {
	renewed, err := renewScript.Run(ctx, that.client, []string{that.key}, that.token, that.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to renew lease %s: %w", that.key, err)
	}

	return renewed == 1, nil
}

func (that *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, that.client, []string{that.key}, that.token).Err(); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", that.key, err)
	}

	return nil
}
