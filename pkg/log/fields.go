package log

// Field names shared by every log line. Audit lines add log_type=audit.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldRoute     = "route"
	FieldStatus    = "status"
	FieldLatency   = "latency"
	FieldClientIP  = "client_ip"

	FieldUserID         = "user_id"
	FieldChatID         = "chat_id"
	FieldMessageID      = "message_id"
	FieldNotificationID = "notification_id"
	FieldConnectionID   = "connection_id"
	FieldDestination    = "destination"
	FieldEventType      = "event_type"

	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
