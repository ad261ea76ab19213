package log

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// ActorKey is the gin context key the access log reads the user id from.
// The auth middleware sets it.
const ActorKey = "user_id"

// AccessLog attaches a request scoped logger to the request context and
// writes one line per request once the handlers have run.
func AccessLog(base *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		reqLog := base.With().
			Str(FieldRequestID, id).
			Str(FieldMethod, c.Request.Method).
			Str(FieldRoute, route).
			Logger()
		c.Request = c.Request.WithContext(reqLog.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		var e *zerolog.Event
		switch {
		case status >= 500:
			e = reqLog.Error()
		case status >= 400:
			e = reqLog.Warn()
		default:
			e = reqLog.Info()
		}
		e = e.Int(FieldStatus, status).
			Dur(FieldLatency, time.Since(began)).
			Str(FieldClientIP, c.ClientIP())
		if actor := c.GetString(ActorKey); actor != "" {
			e = e.Str(FieldUserID, actor)
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			e = e.Strs("errors", errs.Errors())
		}
		e.Msg("request")
	}
}
