// Package audit writes the security relevant trail of chat operations as
// log lines tagged log_type=audit.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-chat/pkg/log"
)

type Action string

const (
	CreateChat  Action = "chat.create"
	UpdateChat  Action = "chat.update"
	DeleteChat  Action = "chat.delete"
	SetAdmins   Action = "chat.admins"
	SetPicture  Action = "chat.picture"
	SendMessage Action = "message.send"
	EditMessage Action = "message.edit"
	MarkRead    Action = "notification.read"
	Auth        Action = "session.auth"
	AuthFailed  Action = "session.auth_failed"
	JoinChat    Action = "session.join"
	LeaveChat   Action = "session.leave"
	Disconnect  Action = "session.disconnect"
)

// Attr adds one field to an audit line.
type Attr func(*zerolog.Event)

func Chat(id string) Attr         { return str(log.FieldChatID, id) }
func Message(id string) Attr      { return str(log.FieldMessageID, id) }
func Notification(id string) Attr { return str(log.FieldNotificationID, id) }
func Connection(id string) Attr   { return str(log.FieldConnectionID, id) }

// Idle records how long a connection had been quiet.
func Idle(d time.Duration) Attr {
	return func(e *zerolog.Event) { e.Dur("idle", d) }
}

func str(key, val string) Attr {
	return func(e *zerolog.Event) { e.Str(key, val) }
}

// Record writes one audit line through the context logger. actor is empty
// for unauthenticated attempts.
func Record(ctx context.Context, action Action, actor string, attrs ...Attr) {
	e := log.Ctx(ctx).Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str("action", string(action))
	if actor != "" {
		e.Str(log.FieldUserID, actor)
	}
	for _, a := range attrs {
		a(e)
	}
	e.Msg(string(action))
}
