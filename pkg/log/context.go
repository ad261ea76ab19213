package log

import (
	"context"

	"github.com/rs/zerolog"
)

// Ctx returns the logger carried by ctx, or the process logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return L()
	}
	return zerolog.Ctx(ctx)
}

// WithFields returns a copy of ctx whose logger also carries the given
// key/value pairs. A trailing key without a value is ignored.
func WithFields(ctx context.Context, kv ...string) context.Context {
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	l := Ctx(ctx).With().Fields(fields).Logger()
	return l.WithContext(ctx)
}
