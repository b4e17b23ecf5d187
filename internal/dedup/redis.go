package dedup

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis is a Deduper shared between replicas. Each processed id is a key
// "<prefix>:msg:<id>" with the configured TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "transit"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(id uint64) string {
	return fmt.Sprintf("%s:msg:%d", r.prefix, id)
}

func (r *Redis) Unseen(ctx context.Context, ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return []uint64{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Exists(ctx, r.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	out := make([]uint64, 0, len(ids))
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			out = append(out, ids[i])
		}
	}
	return out, nil
}

func (r *Redis) Mark(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.SetNX(ctx, r.key(id), 1, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dedup mark: %w", err)
	}
	return nil
}
