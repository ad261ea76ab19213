package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/weiawesome/wes-chat/pkg/log"
)

type Config struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
	// FilePath is the SQLite file or a "file:" URI such as an in-memory
	// database.
	FilePath string `mapstructure:"file_path"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

func (c Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "postgres":
		tz := c.TimeZone
		if tz == "" {
			tz = "UTC"
		}
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn := strings.Join([]string{
			"host=" + c.Host,
			fmt.Sprintf("port=%d", c.Port),
			"user=" + c.User,
			"password=" + c.Password,
			"dbname=" + c.DBName,
			"sslmode=" + sslmode,
			"TimeZone=" + tz,
		}, " ")
		return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), nil
	case "mysql":
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.DBName)), nil
	case "sqlite":
		if c.FilePath == "" {
			return nil, fmt.Errorf("database: sqlite needs a file path")
		}
		return sqlite.Open(c.FilePath), nil
	}
	return nil, fmt.Errorf("database: unknown driver %q", c.Driver)
}

// Open connects with gorm and applies the pool limits. Driver errors are
// translated, so unique violations surface as gorm.ErrDuplicatedKey.
func Open(cfg Config) (*gorm.DB, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger(cfg.LogLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Driver, err)
	}

	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: pool: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// gormLogger sends statement logs to the global zerolog logger at a level
// derived from the service log level names.
func gormLogger(level string) logger.Interface {
	var lvl logger.LogLevel
	switch log.ParseLevel(level) {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		lvl = logger.Info
	case zerolog.Disabled:
		lvl = logger.Silent
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		lvl = logger.Error
	default:
		lvl = logger.Warn
	}
	zl := log.L().With().Str("component", "gorm").Logger()
	return logger.New(&zl, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}
