package service

import (
	"context"
	"io"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/pkg/jwt"
)

// ChatService is the membership and authorization engine.
type ChatService interface {
	CreateChat(ctx context.Context, requesterID string, req *domain.CreateChatRequest) (*domain.ChatDetails, error)
	ListChats(ctx context.Context, userID string) ([]domain.ChatListItem, error)
	GetChat(ctx context.Context, chatID, requesterID string) (*domain.ChatDetails, error)
	UpdateChat(ctx context.Context, chatID, requesterID string, req *domain.UpdateChatRequest) (*domain.UpdateChatResponse, error)
	DeleteChat(ctx context.Context, chatID, requesterID string) error

	AddParticipants(ctx context.Context, chatID, requesterID string, userIDs []string) ([]domain.MemberResult, error)
	RemoveParticipants(ctx context.Context, chatID, requesterID string, userIDs []string) ([]domain.MemberResult, error)
	SetAdminFlags(ctx context.Context, chatID, requesterID string, req *domain.SetAdminsRequest) ([]domain.MemberResult, error)
	ListAdmins(ctx context.Context, chatID, requesterID string) ([]domain.UserSummary, error)
	SetChatPicture(ctx context.Context, chatID, requesterID string, file io.Reader, size int64, contentType string) (*domain.ChatDetails, error)

	// AuthorizeAdminAction succeeds only for an admin of a group chat.
	AuthorizeAdminAction(ctx context.Context, chatID, requesterID, action string) error
	// RequireParticipant succeeds only if userID is a participant of chatID.
	RequireParticipant(ctx context.Context, chatID, userID string) error
}

// MessageService is the message store.
type MessageService interface {
	PostMessage(ctx context.Context, chatID, senderID, content string) (*domain.Message, error)
	ListMessages(ctx context.Context, chatID, requesterID string, opts domain.ListMessagesOptions) ([]domain.Message, error)
	EditMessage(ctx context.Context, messageID, requesterID, content string) (*domain.Message, error)
}

// NotificationService stores per-user notifications and announces them live.
type NotificationService interface {
	Notify(ctx context.Context, userID, notificationType string, payload interface{}) (*domain.Notification, error)
	List(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, requesterID string) (*domain.Notification, error)
}

// UserService serves the user read model.
type UserService interface {
	GetUser(ctx context.Context, userID string) (*domain.UserResponse, error)
	SearchUsers(ctx context.Context, term string) ([]domain.User, error)
	Lookup(ctx context.Context, userIDs []string) (map[string]*domain.User, error)
	// SyncPrincipal records an authenticated principal in the read model.
	SyncPrincipal(ctx context.Context, userID, username string) error
}

// SessionService coordinates WebSocket sessions with the chat core.
type SessionService interface {
	HandleAuth(ctx context.Context, client *hub.Client, token string) error
	HandleJoinChat(ctx context.Context, client *hub.Client, chatID string) error
	HandleLeaveChat(ctx context.Context, client *hub.Client, chatID string) error
	HandleSendMessage(ctx context.Context, client *hub.Client, msg *domain.Frame) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error

	// SendMessage stores a message and announces it to the chat.
	SendMessage(ctx context.Context, chatID, senderID, content string) (*domain.Message, error)
	// EditMessage edits a message and announces the new content to the chat.
	EditMessage(ctx context.Context, messageID, requesterID, content string) (*domain.Message, error)

	Start(ctx context.Context) error
	Stop() error
}

// EventPublisher puts live events on the bus.
type EventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}
