package domain

import (
	"encoding/json"
	"time"
)

// Notification types created by the chat core.
const (
	NotificationChatAdded  = "chat_added"
	NotificationNewMessage = "new_message"
)

// Notification represents a per-user notification.
type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}

// ChatAddedPayload is the payload of a chat_added notification.
type ChatAddedPayload struct {
	ChatID  string  `json:"chat_id"`
	Name    *string `json:"name,omitempty"`
	AddedBy string  `json:"added_by"`
}

// NewMessagePayload is the payload of a new_message notification.
type NewMessagePayload struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
	Preview   string `json:"preview"`
}

// ListNotificationsRequest represents a list notifications request.
type ListNotificationsRequest struct {
	UnreadOnly bool `form:"unread"`
}
