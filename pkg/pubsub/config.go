package pubsub

import (
	"context"
	"fmt"
	"time"
)

type Config struct {
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type KafkaConfig struct {
	Brokers     string `mapstructure:"brokers"`
	GroupID     string `mapstructure:"group_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	Partitions  int    `mapstructure:"partitions"`
}

// NewBus builds the bus named by cfg.Driver: "memory" (the default),
// "redis" or "kafka".
func NewBus(ctx context.Context, cfg Config) (Bus, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryBus(), nil
	case "redis":
		return NewRedisBus(ctx, cfg.Redis)
	case "kafka":
		return NewKafkaBus(ctx, cfg.Kafka)
	}
	return nil, fmt.Errorf("pubsub: unknown driver %q", cfg.Driver)
}
