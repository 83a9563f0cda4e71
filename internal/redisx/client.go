package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Dedup remembers processed event ids per scope (e.g. "webhook", "notifier").
// An id is marked only after its handler succeeded, so a crash between the two
// steps replays the event instead of losing it.
type Dedup struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewDedup(rdb *redis.Client) *Dedup { return &Dedup{RDB: rdb, TTL: TTLDedup} }

func (d *Dedup) Seen(ctx context.Context, scope, id string) (bool, error) {
	return Exists(ctx, d.RDB, DedupKey(scope, id))
}

func (d *Dedup) Mark(ctx context.Context, scope, id string) error {
	return d.RDB.Set(ctx, DedupKey(scope, id), "1", d.TTL).Err()
}
