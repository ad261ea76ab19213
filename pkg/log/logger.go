// Package log configures zerolog for the service and carries request scoped
// loggers through context.Context.
package log

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string `mapstructure:"level"`
	Pretty  bool   `mapstructure:"pretty"`
	Service string `mapstructure:"service"`

	// Output defaults to stdout.
	Output io.Writer `mapstructure:"-"`
}

var global atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	install(&l)
}

func install(l *zerolog.Logger) {
	global.Store(l)
	zerolog.DefaultContextLogger = l
}

// Build returns a logger for cfg without touching the global one.
func Build(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	zc := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Service != "" {
		zc = zc.Str(FieldService, cfg.Service)
	}
	return zc.Logger()
}

// Setup builds the process logger, makes it the fallback for contexts that
// carry none and routes the standard library logger into it.
func Setup(cfg Config) *zerolog.Logger {
	l := Build(cfg)
	install(&l)

	stdlog.SetFlags(0)
	stdlog.SetOutput(l.With().Str("source", "stdlog").Logger())
	return &l
}

// L returns the process logger.
func L() *zerolog.Logger {
	return global.Load()
}

// ParseLevel accepts zerolog level names plus "warning" and "off". Anything
// else means info.
func ParseLevel(s string) zerolog.Level {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "warning":
		return zerolog.WarnLevel
	case "off":
		return zerolog.Disabled
	case "":
		return zerolog.InfoLevel
	default:
		lvl, err := zerolog.ParseLevel(name)
		if err != nil || lvl == zerolog.NoLevel {
			return zerolog.InfoLevel
		}
		return lvl
	}
}
