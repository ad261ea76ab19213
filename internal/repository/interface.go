package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-chat/internal/domain"
)

var (
	ErrChatNotFound         = errors.New("chat not found")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUserNotFound         = errors.New("user not found")
)

// ChatRepository defines the interface for chat and participant persistence.
type ChatRepository interface {
	// Transaction runs fn with a repository bound to one database transaction.
	Transaction(ctx context.Context, fn func(repo ChatRepository) error) error

	Create(ctx context.Context, chat *domain.Chat, participants []domain.Participant) error
	GetByID(ctx context.Context, id string) (*domain.Chat, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Chat, error)
	UpdateName(ctx context.Context, chatID string, name *string) error
	UpdatePicture(ctx context.Context, chatID, picture string) error
	// Delete removes the chat with its participants and messages.
	Delete(ctx context.Context, chatID string) error

	ListParticipants(ctx context.Context, chatID string) ([]domain.Participant, error)
	ListParticipantsForChats(ctx context.Context, chatIDs []string) (map[string][]domain.Participant, error)
	GetParticipant(ctx context.Context, chatID, userID string) (*domain.Participant, error)
	// AddParticipant inserts the row unless it exists; added reports whether a row was written.
	AddParticipant(ctx context.Context, p domain.Participant) (added bool, err error)
	RemoveParticipant(ctx context.Context, chatID, userID string) error
	SetAdmin(ctx context.Context, chatID, userID string, isAdmin bool) error
}

// MessageRepository defines the interface for message persistence.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	List(ctx context.Context, chatID string, opts domain.ListMessagesOptions) ([]domain.Message, error)
	LatestForChats(ctx context.Context, chatIDs []string) (map[string]*domain.Message, error)
	UpdateContent(ctx context.Context, id, content string) (*domain.Message, error)
	CountByChat(ctx context.Context, chatID string) (int64, error)
}

// NotificationRepository defines the interface for notification persistence.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// UserRepository defines the interface for the user read model.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	Search(ctx context.Context, term string, limit int) ([]domain.User, error)
	Upsert(ctx context.Context, user *domain.User) error
}
