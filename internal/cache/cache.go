package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"skillforge/user-service/internal/crypto"
)

// Cache holds the non-authoritative redis state: a per-user mirror of the
// active session id, and the deny-list of access tokens revoked before their
// natural expiry. Authorization decisions are never made from the mirror
// alone; the persisted session record stays the source of truth.
type Cache struct {
	client *redis.Client
}

func NewClient(addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func sessionKey(userID string) string {
	return "session:" + userID
}

func denyKey(token string) string {
	return "deny:" + crypto.HashToken(token)
}

func (c *Cache) MirrorSession(ctx context.Context, userID, sessionID string, ttl time.Duration) error {
	return c.client.Set(ctx, sessionKey(userID), sessionID, ttl).Err()
}

func (c *Cache) SessionFor(ctx context.Context, userID string) (string, error) {
	val, err := c.client.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (c *Cache) DropSession(ctx context.Context, userID string) error {
	return c.client.Del(ctx, sessionKey(userID)).Err()
}

// DenyToken puts an access token on the deny-list for its remaining
// lifetime. Once the token has expired by signature the entry is pointless,
// so non-positive TTLs are a no-op.
func (c *Cache) DenyToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, denyKey(token), "1", ttl).Err()
}

func (c *Cache) IsTokenDenied(ctx context.Context, token string) (bool, error) {
	count, err := c.client.Exists(ctx, denyKey(token)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Limiter is a fixed-window request counter keyed by caller identity.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "rl:" + l.prefix + ":" + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.limit), nil
}
