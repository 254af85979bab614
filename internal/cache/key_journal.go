package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyTTL = 24 * time.Hour

// RedisKeyJournal maps idempotency keys to the transaction they produced so
// operators can trace an agent's retries. It never short-circuits a charge.
type RedisKeyJournal struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisKeyJournal(client *redis.Client, ttl time.Duration) *RedisKeyJournal {
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &RedisKeyJournal{client: client, ttl: ttl}
}

func journalKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

func (j *RedisKeyJournal) Remember(ctx context.Context, key, transactionID string) error {
	return j.client.Set(ctx, journalKey(key), transactionID, j.ttl).Err()
}

// Lookup returns the transaction recorded for key, or "" if none is known.
func (j *RedisKeyJournal) Lookup(ctx context.Context, key string) (string, error) {
	txnID, err := j.client.Get(ctx, journalKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return txnID, err
}
