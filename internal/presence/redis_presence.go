package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-chat/pkg/log"
)

// Config holds presence registry configuration.
type Config struct {
	Prefix            string        `mapstructure:"prefix"`
	InstanceID        string        `mapstructure:"instance_id"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
}

// RedisTracker keeps one hash per online user: field = connection id,
// value = instance id. Each instance refreshes the TTL of the users it
// serves, so a crashed instance's users expire on their own.
type RedisTracker struct {
	client            *redis.Client
	prefix            string
	instanceID        string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managed           map[string]map[string]struct{} // userID -> connection ids on this instance
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

// NewRedisTracker creates a presence tracker on a shared Redis client.
func NewRedisTracker(client *redis.Client, cfg Config) *RedisTracker {
	if cfg.Prefix == "" {
		cfg.Prefix = "chat:presence"
	}
	if cfg.KeyTTL <= 0 {
		cfg.KeyTTL = 30 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 10 * time.Second
	}
	return &RedisTracker{
		client:            client,
		prefix:            cfg.Prefix,
		instanceID:        cfg.InstanceID,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managed:           make(map[string]map[string]struct{}),
	}
}

func (r *RedisTracker) keyFor(userID string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, userID)
}

// Online records a live connection for a user.
func (r *RedisTracker) Online(ctx context.Context, userID, connectionID string) error {
	key := r.keyFor(userID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, connectionID, r.instanceID)
	pipe.Expire(ctx, key, r.keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record presence: %w", err)
	}

	r.mu.Lock()
	conns, ok := r.managed[userID]
	if !ok {
		conns = make(map[string]struct{})
		r.managed[userID] = conns
	}
	conns[connectionID] = struct{}{}
	r.mu.Unlock()

	return nil
}

// Offline removes a live connection for a user.
func (r *RedisTracker) Offline(ctx context.Context, userID, connectionID string) error {
	if err := r.client.HDel(ctx, r.keyFor(userID), connectionID).Err(); err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}

	r.mu.Lock()
	if conns, ok := r.managed[userID]; ok {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(r.managed, userID)
		}
	}
	r.mu.Unlock()

	return nil
}

// IsOnline reports whether any instance holds a live connection for the user.
func (r *RedisTracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := r.client.HLen(ctx, r.keyFor(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read presence: %w", err)
	}
	return n > 0, nil
}

func (r *RedisTracker) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("presence heartbeat started")
	return nil
}

func (r *RedisTracker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisTracker) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	users := make([]string, 0, len(r.managed))
	for userID := range r.managed {
		users = append(users, userID)
	}
	r.mu.RUnlock()

	for _, userID := range users {
		if err := r.client.Expire(ctx, r.keyFor(userID), r.keyTTL).Err(); err != nil {
			l := log.L()
			l.Error().Str(log.FieldUserID, userID).Err(err).Msg("failed to refresh presence key")
		}
	}
}

func (r *RedisTracker) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}
