package domain

import (
	"time"
)

// ChatKind is the derived classification of a chat.
type ChatKind string

const (
	ChatKindDirect ChatKind = "direct"
	ChatKindGroup  ChatKind = "group"
)

// Chat represents a conversation.
type Chat struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasName reports whether the chat has a non-empty name.
func (c *Chat) HasName() bool {
	return c.Name != nil && *c.Name != ""
}

// Participant is a user's membership in a chat.
type Participant struct {
	ChatID  string `json:"chat_id"`
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
}

// Classify returns group iff the chat is named or has more than two
// participants, and direct otherwise.
func Classify(chat *Chat, participants []Participant) ChatKind {
	if chat.HasName() || len(participants) > 2 {
		return ChatKindGroup
	}
	return ChatKindDirect
}

// FindParticipant returns the participant row for userID, if any.
func FindParticipant(participants []Participant, userID string) (Participant, bool) {
	for _, p := range participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// CountAdmins returns the number of admin participants.
func CountAdmins(participants []Participant) int {
	n := 0
	for _, p := range participants {
		if p.IsAdmin {
			n++
		}
	}
	return n
}

// MemberStatus is the per-id outcome of a batch membership operation.
type MemberStatus string

const (
	MemberAdded     MemberStatus = "added"
	MemberExisting  MemberStatus = "already_member"
	MemberRemoved   MemberStatus = "removed"
	MemberPromoted  MemberStatus = "admin_granted"
	MemberDemoted   MemberStatus = "admin_revoked"
	MemberFailed    MemberStatus = "failed"
	MemberUnchanged MemberStatus = "unchanged"
)

// MemberResult reports what happened to one user id in a batch.
type MemberResult struct {
	UserID string       `json:"user_id"`
	Status MemberStatus `json:"status"`
	Error  *ErrorInfo   `json:"error,omitempty"`
	Err    error        `json:"-"`
}

// ErrorInfo is the wire form of a domain error.
type ErrorInfo struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
}

// FailedResult builds a failed MemberResult from err.
func FailedResult(userID string, err error) MemberResult {
	return MemberResult{
		UserID: userID,
		Status: MemberFailed,
		Error:  &ErrorInfo{Code: KindOf(err), Message: MessageOf(err)},
		Err:    err,
	}
}

// ParticipantView is a participant with the user's summary attached.
type ParticipantView struct {
	UserSummary
	IsAdmin bool `json:"is_admin"`
}

// ChatDetails is the full view of one chat.
type ChatDetails struct {
	ID           string            `json:"id"`
	Name         *string           `json:"name,omitempty"`
	Picture      string            `json:"picture,omitempty"`
	Kind         ChatKind          `json:"kind"`
	Participants []ParticipantView `json:"participants"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ChatListItem is one entry of a user's chat list.
type ChatListItem struct {
	ID           string            `json:"id"`
	Name         *string           `json:"name,omitempty"`
	DisplayName  string            `json:"display_name"`
	Picture      string            `json:"picture,omitempty"`
	Kind         ChatKind          `json:"kind"`
	Participants []ParticipantView `json:"participants"`
	LastMessage  *Message          `json:"last_message"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// CreateChatRequest represents a create chat request.
type CreateChatRequest struct {
	Name      *string  `json:"name"`
	MemberIDs []string `json:"user_ids"`
}

// UpdateChatRequest represents an update chat request.
type UpdateChatRequest struct {
	Name               *string  `json:"name"`
	AddParticipants    []string `json:"add_participants"`
	RemoveParticipants []string `json:"remove_participants"`
}

// UpdateChatResponse reports the outcome of an update chat request.
type UpdateChatResponse struct {
	Chat    *ChatDetails   `json:"chat"`
	Added   []MemberResult `json:"added,omitempty"`
	Removed []MemberResult `json:"removed,omitempty"`
}

// SetAdminsRequest represents a set admin flags request.
type SetAdminsRequest struct {
	Assign []string `json:"assign"`
	Remove []string `json:"remove"`
}
