package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-chat/internal/domain"
)

const (
	fieldName      = "name"
	fieldEmail     = "email"
	fieldPicture   = "picture"
	fieldCreatedAt = "created_at"
)

// RedisUserCache stores each user as a Redis hash. It does not own the
// client.
type RedisUserCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisUserCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisUserCache {
	if prefix == "" {
		prefix = "chat:user"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisUserCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisUserCache) key(userID string) string {
	return c.prefix + ":" + userID
}

func (c *RedisUserCache) Get(ctx context.Context, userID string) (*domain.User, error) {
	fields, err := c.client.HGetAll(ctx, c.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", userID, err)
	}
	// HGETALL on a missing key yields an empty map, not redis.Nil.
	if len(fields) == 0 {
		return nil, ErrCacheMiss
	}

	user := &domain.User{
		ID:             userID,
		Name:           fields[fieldName],
		Email:          fields[fieldEmail],
		ProfilePicture: fields[fieldPicture],
	}
	if raw := fields[fieldCreatedAt]; raw != "" {
		created, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt cached user %s: %w", userID, err)
		}
		user.CreatedAt = created
	}
	return user, nil
}

// Put replaces the cached record and resets its expiry in one round trip.
func (c *RedisUserCache) Put(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return errors.New("cache: user without id")
	}
	key := c.key(user.ID)

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldName, user.Name,
			fieldEmail, user.Email,
			fieldPicture, user.ProfilePicture,
			fieldCreatedAt, user.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", user.ID, err)
	}
	return nil
}

func (c *RedisUserCache) Forget(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
