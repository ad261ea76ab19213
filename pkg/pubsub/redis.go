package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus carries envelopes over Redis PUBLISH. A stream is a PSUBSCRIBE on
// "<namespace>:*", so every instance sees every envelope.
type RedisBus struct {
	client redis.UniversalClient
	owned  bool
}

// NewRedisBus dials its own client and closes it on Close.
func NewRedisBus(ctx context.Context, cfg RedisConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pubsub: redis ping %s: %w", cfg.Address, err)
	}
	return &RedisBus{client: client, owned: true}, nil
}

// NewRedisBusWithClient shares a client owned by the caller.
func NewRedisBusWithClient(client redis.UniversalClient) *RedisBus {
	return &RedisBus{client: client}
}

func (r *RedisBus) Publish(ctx context.Context, env *Envelope) error {
	if _, _, err := destinationNamespace(env); err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("pubsub: encode %s: %w", env.Type, err)
	}
	if err := r.client.Publish(ctx, env.Destination, raw).Err(); err != nil {
		return fmt.Errorf("pubsub: redis publish %s: %w", env.Destination, err)
	}
	return nil
}

func (r *RedisBus) Stream(ctx context.Context, ns Namespace) (<-chan *Envelope, error) {
	if !ns.valid() {
		return nil, fmt.Errorf("pubsub: unknown namespace %q", ns)
	}

	sub := r.client.PSubscribe(ctx, ns.Channel("*"))
	// The confirmation means publishes after this point reach the stream.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("pubsub: redis psubscribe %s: %w", ns, err)
	}

	out := make(chan *Envelope, streamBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel(redis.WithChannelSize(streamBuffer))
		for {
			var msg *redis.Message
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				msg = m
			}

			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("redis bus dropped undecodable envelope")
				continue
			}
			if env.Destination == "" {
				env.Destination = msg.Channel
			}
			select {
			case out <- &env:
			default:
				log.Warn().Str("channel", msg.Channel).Msg("redis bus stream full, envelope dropped")
			}
		}
	}()
	return out, nil
}

func (r *RedisBus) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
