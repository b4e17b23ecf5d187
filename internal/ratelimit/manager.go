package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Manager provides Redis-backed fixed-window rate limiting. The same client
// is shared with the message deduper.
type Manager struct {
	redis  *redis.Client
	prefix string
	rpm    int
	now    func() time.Time
}

// Connect dials Redis and checks it answers.
func Connect(ctx context.Context, redisURL, password string, db int) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opt.Password = password
	}
	if db != 0 {
		opt.DB = db
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewManager allows rpm requests per client per minute.
func NewManager(client *redis.Client, prefix string, rpm int) *Manager {
	if prefix == "" {
		prefix = "transit"
	}
	return &Manager{redis: client, prefix: prefix, rpm: rpm, now: time.Now}
}

func (m *Manager) Close() error { return m.redis.Close() }

// Client exposes the underlying connection for other Redis-backed components.
func (m *Manager) Client() *redis.Client { return m.redis }

// Limit is the configured requests per minute.
func (m *Manager) Limit() int { return m.rpm }

// CheckRate counts one request for clientID in the current minute. It
// reports whether the request is allowed, how many remain and the seconds
// until the window resets.
func (m *Manager) CheckRate(ctx context.Context, clientID string) (allowed bool, remaining int, resetSec int, err error) {
	now := m.now().UTC()
	window := now.Unix() / 60
	rk := fmt.Sprintf("%s:rl:%s:%d", m.prefix, clientID, window)

	pipe := m.redis.TxPipeline()
	incr := pipe.Incr(ctx, rk)
	pipe.Expire(ctx, rk, time.Minute)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, 0, err
	}

	count := int(incr.Val())
	resetSec = 60 - int(now.Unix()%60)
	if count > m.rpm {
		return false, 0, resetSec, nil
	}
	return true, m.rpm - count, resetSec, nil
}
