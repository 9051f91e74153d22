package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the multi-instance dedup store: SET NX with a TTL is atomic, so
// two instances racing on the same redelivery agree on a single winner.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    DefaultTTL,
	}
}

func (r *Redis) MarkIfNew(ctx context.Context, provider, eventID string) (bool, error) {
	key := fmt.Sprintf("esign:webhook:%s:%s", provider, eventID)
	inserted, err := r.client.SetNX(ctx, key, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis dedup error: %w", err)
	}
	return inserted, nil
}

func (r *Redis) Close() error { return r.client.Close() }
