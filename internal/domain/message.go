package domain

import "time"

// DefaultMessagePageSize is used when a listing does not specify a limit.
const DefaultMessagePageSize = 50

// Message represents a chat message.
type Message struct {
	ID        string       `json:"id"`
	ChatID    string       `json:"chat_id"`
	SenderID  string       `json:"sender_id"`
	Sender    *UserSummary `json:"sender,omitempty"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ListMessagesOptions bounds a message listing.
type ListMessagesOptions struct {
	Search string `form:"search"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// PostMessageRequest represents a post message request.
type PostMessageRequest struct {
	Content string `json:"content"`
}

// EditMessageRequest represents an edit message request.
type EditMessageRequest struct {
	Content string `json:"content"`
}
