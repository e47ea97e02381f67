// Package ledger tracks per-participant usage cost on Redis. Each turn
// accrues a dollar cost from its token usage; crossing the configured
// threshold locks the participant out until an operator credits or unlocks
// them. Accounting is advisory: a Redis outage never blocks conversations.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefixes. The value under balanceKey is a float dollar amount;
// lockKey is a presence flag with a TTL.
const (
	balanceKeyPrefix = "usage:balance:"
	lockKeyPrefix    = "usage:lock:"
)

// Config holds the accounting knobs.
type Config struct {
	// Addr is the Redis address.
	Addr string

	// Password is the Redis password, if any.
	Password string

	// DB is the Redis database number.
	DB int

	// CostPer1K is the dollar cost per thousand tokens. Default: 0.003.
	CostPer1K float64

	// Threshold is the balance at which a participant is locked.
	// Default: 5.00.
	Threshold float64

	// LockTTL is how long a usage lock lasts before expiring on its own.
	// Default: 7 days.
	LockTTL time.Duration
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.CostPer1K == 0 {
		c.CostPer1K = 0.003
	}
	if c.Threshold == 0 {
		c.Threshold = 5.00
	}
	if c.LockTTL == 0 {
		c.LockTTL = 7 * 24 * time.Hour
	}
}

// Ledger is the Redis-backed usage ledger.
type Ledger struct {
	client *redis.Client
	config Config
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	cfg.defaults()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ledger: connect to redis: %w", err)
	}

	return &Ledger{client: client, config: cfg}, nil
}

// Close releases the Redis connection.
func (l *Ledger) Close() error {
	return l.client.Close()
}

// Accrue adds the cost of tokens to the participant's balance. When the new
// balance crosses the threshold, the participant is locked and true is
// returned.
func (l *Ledger) Accrue(ctx context.Context, participantID string, tokens int) (bool, error) {
	cost := float64(tokens) / 1000 * l.config.CostPer1K

	balance, err := l.client.IncrByFloat(ctx, balanceKeyPrefix+participantID, cost).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: accrue: %w", err)
	}
	if balance < l.config.Threshold {
		return false, nil
	}

	if err := l.Lock(ctx, participantID); err != nil {
		return false, err
	}
	return true, nil
}

// Balance returns the participant's current balance in dollars.
func (l *Ledger) Balance(ctx context.Context, participantID string) (float64, error) {
	balance, err := l.client.Get(ctx, balanceKeyPrefix+participantID).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: balance: %w", err)
	}
	return balance, nil
}

// Lock marks the participant as locked for the configured TTL.
func (l *Ledger) Lock(ctx context.Context, participantID string) error {
	if err := l.client.Set(ctx, lockKeyPrefix+participantID, "1", l.config.LockTTL).Err(); err != nil {
		return fmt.Errorf("ledger: lock: %w", err)
	}
	return nil
}

// Unlock removes the participant's lock.
func (l *Ledger) Unlock(ctx context.Context, participantID string) error {
	if err := l.client.Del(ctx, lockKeyPrefix+participantID).Err(); err != nil {
		return fmt.Errorf("ledger: unlock: %w", err)
	}
	return nil
}

// Locked reports whether the participant is currently locked.
func (l *Ledger) Locked(ctx context.Context, participantID string) (bool, error) {
	n, err := l.client.Exists(ctx, lockKeyPrefix+participantID).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: locked: %w", err)
	}
	return n > 0, nil
}

// Credit reduces the participant's balance by amount (a payment) and
// unlocks them if the result is below the threshold. Returns the new
// balance.
func (l *Ledger) Credit(ctx context.Context, participantID string, amount float64) (float64, error) {
	balance, err := l.client.IncrByFloat(ctx, balanceKeyPrefix+participantID, -amount).Result()
	if err != nil {
		return 0, fmt.Errorf("ledger: credit: %w", err)
	}
	if balance < l.config.Threshold {
		if err := l.Unlock(ctx, participantID); err != nil {
			return balance, err
		}
	}
	return balance, nil
}
