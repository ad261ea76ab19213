package config

import (
	"time"

	"github.com/weiawesome/wes-chat/internal/presence"
	pkgconfig "github.com/weiawesome/wes-chat/pkg/config"
	"github.com/weiawesome/wes-chat/pkg/database"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
	"github.com/weiawesome/wes-chat/pkg/storage"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Database  database.Config
	Redis     RedisConfig
	PubSub    pubsub.Config `mapstructure:"pubsub"`
	Auth      AuthConfig
	Storage   storage.Config
	Cache     CacheConfig
	Presence  presence.Config
	Chat      ChatConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// RedisConfig configures the client shared by the user cache and presence.
// An empty address disables both; in-process fallbacks are used instead.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessDuration time.Duration `mapstructure:"access_duration"`
}

type CacheConfig struct {
	Prefix string
	TTL    time.Duration
}

type ChatConfig struct {
	GrantCreatorAdmin bool  `mapstructure:"grant_creator_admin"`
	VerifyJoin        bool  `mapstructure:"verify_join"`
	DefaultPageSize   int   `mapstructure:"default_page_size"`
	NotifyOnMessage   bool  `mapstructure:"notify_on_message"`
	MaxPictureSize    int64 `mapstructure:"max_picture_size"`
	PictureSize       int   `mapstructure:"picture_size"`
	PictureQuality    int   `mapstructure:"picture_quality"`
	UserSearchLimit   int   `mapstructure:"user_search_limit"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	return LoadFrom("./config")
}

// LoadFrom reads config.yaml from path (a directory or a file) over the
// defaults below. Environment variables win over both.
func LoadFrom(path string) (*Config, error) {
	var cfg Config
	err := pkgconfig.Decode(pkgconfig.Source{
		Path:     path,
		Name:     "config",
		Defaults: defaults,
		Env:      envAliases,
	}, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

var defaults = map[string]any{
	"server.host":             "0.0.0.0",
	"server.port":             8090,
	"server.shutdown_timeout": "15s",

	"websocket.ping_interval":    "30s",
	"websocket.pong_wait":        "60s",
	"websocket.write_wait":       "10s",
	"websocket.max_message_size": 8192,
	"websocket.send_buffer":      256,
	"websocket.allowed_origins":  []string{},

	"database.driver":            "postgres",
	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "postgres",
	"database.password":          "postgres",
	"database.dbname":            "wes_chat",
	"database.sslmode":           "disable",
	"database.timezone":          "UTC",
	"database.file_path":         "./data/chat.db",
	"database.max_idle_conns":    10,
	"database.max_open_conns":    100,
	"database.conn_max_lifetime": "1h",
	"database.log_level":         "warn",

	"redis.address":  "",
	"redis.password": "",
	"redis.db":       0,

	"pubsub.driver":              "memory",
	"pubsub.redis.address":       "localhost:6379",
	"pubsub.redis.pool_size":     10,
	"pubsub.redis.read_timeout":  "3s",
	"pubsub.redis.write_timeout": "3s",
	"pubsub.kafka.brokers":       "localhost:9092",
	"pubsub.kafka.group_id":      "wes-chat",
	"pubsub.kafka.topic_prefix":  "wes-chat",
	"pubsub.kafka.partitions":    4,

	"auth.jwt_secret":      "",
	"auth.issuer":          "wes-chat",
	"auth.access_duration": "1h",

	"storage.driver":            "local",
	"storage.local.base_path":   "./data/media",
	"storage.local.public_url":  "/media",
	"storage.s3.region":         "us-east-1",
	"storage.s3.use_path_style": true,
	"storage.s3.link_expiry":    "168h",

	"cache.prefix": "chat:user",
	"cache.ttl":    "5m",

	"presence.prefix":             "chat:presence",
	"presence.heartbeat_interval": "10s",
	"presence.key_ttl":            "30s",

	"chat.grant_creator_admin": true,
	"chat.verify_join":         true,
	"chat.default_page_size":   50,
	"chat.notify_on_message":   false,
	"chat.max_picture_size":    5 << 20,
	"chat.picture_size":        256,
	"chat.picture_quality":     85,
	"chat.user_search_limit":   50,

	"log.level":  "info",
	"log.pretty": false,
}

// envAliases are the short variable names deployments already use.
var envAliases = map[string]string{
	"server.port":                  "PORT",
	"database.driver":              "DB_DRIVER",
	"database.host":                "DB_HOST",
	"database.port":                "DB_PORT",
	"database.user":                "DB_USER",
	"database.password":            "DB_PASSWORD",
	"database.dbname":              "DB_NAME",
	"database.sslmode":             "DB_SSLMODE",
	"database.file_path":           "DB_FILE_PATH",
	"redis.address":                "REDIS_ADDRESS",
	"redis.password":               "REDIS_PASSWORD",
	"pubsub.driver":                "PUBSUB_DRIVER",
	"pubsub.redis.address":         "PUBSUB_REDIS_ADDRESS",
	"pubsub.kafka.brokers":         "KAFKA_BROKERS",
	"auth.jwt_secret":              "JWT_SECRET",
	"auth.issuer":                  "JWT_ISSUER",
	"storage.driver":               "STORAGE_DRIVER",
	"storage.s3.endpoint":          "S3_ENDPOINT",
	"storage.s3.bucket":            "S3_BUCKET",
	"storage.s3.access_key_id":     "S3_ACCESS_KEY_ID",
	"storage.s3.secret_access_key": "S3_SECRET_ACCESS_KEY",
	"storage.s3.public_url":        "S3_PUBLIC_URL",
	"presence.instance_id":         "INSTANCE_ID",
	"log.level":                    "LOG_LEVEL",
}
