package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/weiawesome/wes-chat/internal/audit"
	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/presence"
	"github.com/weiawesome/wes-chat/pkg/log"
)

const previewLength = 100

type sessionService struct {
	hub       *hub.Hub
	validator TokenValidator
	chats     ChatService
	messages  MessageService
	notifier  NotificationService
	users     UserService
	publisher EventPublisher
	presence  presence.Tracker
	cfg       config.ChatConfig
}

func NewSessionService(
	h *hub.Hub,
	validator TokenValidator,
	chats ChatService,
	messages MessageService,
	notifier NotificationService,
	users UserService,
	publisher EventPublisher,
	tracker presence.Tracker,
	cfg config.ChatConfig,
) SessionService {
	return &sessionService{
		hub:       h,
		validator: validator,
		chats:     chats,
		messages:  messages,
		notifier:  notifier,
		users:     users,
		publisher: publisher,
		presence:  tracker,
		cfg:       cfg,
	}
}

func (s *sessionService) HandleAuth(ctx context.Context, c *hub.Client, token string) error {
	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		audit.Record(ctx, audit.AuthFailed, "", audit.Connection(c.ID))
		c.SendMessage(domain.AuthRejected("invalid or expired token"))
		return fmt.Errorf("invalid token: %w", err)
	}

	if !c.Session.Bind(domain.Principal{UserID: claims.UserID, Username: claims.Username}) {
		return c.SendMessage(domain.AuthRejected("connection is already authenticated as another user"))
	}

	l := log.Ctx(ctx)
	if err := s.users.SyncPrincipal(ctx, claims.UserID, claims.Username); err != nil {
		l.Error().Err(err).Str(log.FieldUserID, claims.UserID).Msg("failed to sync principal")
	}

	if err := s.hub.Join(c, hub.UserDestination(claims.UserID)); err != nil {
		return fmt.Errorf("failed to join user destination: %w", err)
	}
	if err := s.presence.Online(ctx, claims.UserID, c.ID); err != nil {
		l.Warn().Err(err).Str(log.FieldUserID, claims.UserID).Msg("failed to record presence")
	}

	audit.Record(ctx, audit.Auth, claims.UserID, audit.Connection(c.ID))

	return c.SendMessage(domain.AuthAccepted(claims.UserID, claims.Username))
}

func (s *sessionService) HandleJoinChat(ctx context.Context, c *hub.Client, chatID string) error {
	userID := c.Session.UserID()
	if userID == "" {
		return c.SendMessage(domain.ErrorFrameOf(errNotAuthenticated, ""))
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return c.SendMessage(domain.ErrorFrameOf(domain.Validation("chat_id is required"), ""))
	}

	if s.cfg.VerifyJoin {
		if err := s.chats.RequireParticipant(ctx, chatID, userID); err != nil {
			return c.SendMessage(domain.ErrorFrameOf(err, ""))
		}
	}

	if err := s.hub.Join(c, hub.ChatDestination(chatID)); err != nil {
		return fmt.Errorf("failed to join chat destination: %w", err)
	}
	audit.Record(ctx, audit.JoinChat, userID, audit.Chat(chatID), audit.Connection(c.ID))

	return c.SendMessage(domain.ChatJoined(chatID))
}

func (s *sessionService) HandleLeaveChat(ctx context.Context, c *hub.Client, chatID string) error {
	userID := c.Session.UserID()
	if userID == "" {
		return c.SendMessage(domain.ErrorFrameOf(errNotAuthenticated, ""))
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return c.SendMessage(domain.ErrorFrameOf(domain.Validation("chat_id is required"), ""))
	}

	if s.hub.Leave(c, hub.ChatDestination(chatID)) {
		audit.Record(ctx, audit.LeaveChat, userID, audit.Chat(chatID), audit.Connection(c.ID))
	}

	return c.SendMessage(domain.ChatLeft(chatID))
}

// HandleSendMessage posts a message for the connection's user. Failures are
// reported to this connection only.
func (s *sessionService) HandleSendMessage(ctx context.Context, c *hub.Client, msg *domain.Frame) error {
	userID := c.Session.UserID()
	if userID == "" {
		return c.SendMessage(domain.ErrorFrameOf(errNotAuthenticated, msg.RequestID))
	}

	stored, err := s.SendMessage(ctx, msg.ChatID, userID, msg.Content)
	if err != nil {
		return c.SendMessage(domain.ErrorFrameOf(err, msg.RequestID))
	}

	return c.SendMessage(domain.Acknowledge(msg.RequestID, stored))
}

// HandleDisconnect runs after the hub has dropped every subscription of c.
func (s *sessionService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	userID := c.Session.UserID()
	if userID == "" {
		return nil
	}

	if err := s.presence.Offline(ctx, userID, c.ID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to clear presence")
	}
	audit.Record(ctx, audit.Disconnect, userID, audit.Connection(c.ID), audit.Idle(c.Session.IdleFor()))
	return nil
}

// SendMessage stores a message and publishes it right after the commit. The
// publish is best effort; the stored message is the source of truth.
func (s *sessionService) SendMessage(ctx context.Context, chatID, senderID, content string) (*domain.Message, error) {
	ctx = detach(ctx)
	msg, err := s.messages.PostMessage(ctx, strings.TrimSpace(chatID), senderID, content)
	if err != nil {
		return nil, err
	}
	audit.Record(ctx, audit.SendMessage, senderID, audit.Chat(msg.ChatID), audit.Message(msg.ID))

	l := log.Ctx(ctx)
	if err := s.publisher.Publish(ctx, domain.MessageCreated{Message: *msg}); err != nil {
		l.Error().Err(err).Str(log.FieldMessageID, msg.ID).Str(log.FieldChatID, msg.ChatID).Msg("failed to publish message")
	}

	if s.cfg.NotifyOnMessage {
		s.notifyParticipants(ctx, msg)
	}
	return msg, nil
}

// EditMessage edits a message and publishes the new content.
func (s *sessionService) EditMessage(ctx context.Context, messageID, requesterID, content string) (*domain.Message, error) {
	ctx = detach(ctx)
	msg, err := s.messages.EditMessage(ctx, messageID, requesterID, content)
	if err != nil {
		return nil, err
	}
	audit.Record(ctx, audit.EditMessage, requesterID, audit.Chat(msg.ChatID), audit.Message(msg.ID))

	if err := s.publisher.Publish(ctx, domain.MessageUpdated{Message: *msg}); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldMessageID, msg.ID).Str(log.FieldChatID, msg.ChatID).Msg("failed to publish message update")
	}
	return msg, nil
}

func (s *sessionService) notifyParticipants(ctx context.Context, msg *domain.Message) {
	l := log.Ctx(ctx)

	chat, err := s.chats.GetChat(ctx, msg.ChatID, msg.SenderID)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldChatID, msg.ChatID).Msg("failed to load participants for notification")
		return
	}

	payload := domain.NewMessagePayload{
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Preview:   preview(msg.Content),
	}
	for _, p := range chat.Participants {
		if p.ID == msg.SenderID {
			continue
		}
		if _, err := s.notifier.Notify(ctx, p.ID, domain.NotificationNewMessage, payload); err != nil {
			l.Error().Err(err).Str(log.FieldUserID, p.ID).Msg("failed to notify participant")
		}
	}
}

func (s *sessionService) Start(ctx context.Context) error {
	if err := s.presence.StartHeartbeat(ctx); err != nil {
		return fmt.Errorf("failed to start presence heartbeat: %w", err)
	}
	l := log.L()
	l.Info().Msg("session service started")
	return nil
}

func (s *sessionService) Stop() error {
	s.presence.StopHeartbeat()
	return nil
}

var errNotAuthenticated = domain.Unauthorized("not authenticated")

func preview(content string) string {
	r := []rune(content)
	if len(r) <= previewLength {
		return content
	}
	return string(r[:previewLength]) + "..."
}
