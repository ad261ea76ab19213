package service

import (
	"context"
	"errors"
	"strings"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/repository"
)

const maxMessageLength = 4000

type messageServiceImpl struct {
	messages        repository.MessageRepository
	chats           repository.ChatRepository
	users           UserService
	defaultPageSize int
}

// NewMessageService creates a new message service.
func NewMessageService(
	messages repository.MessageRepository,
	chats repository.ChatRepository,
	users UserService,
	defaultPageSize int,
) MessageService {
	if defaultPageSize <= 0 {
		defaultPageSize = domain.DefaultMessagePageSize
	}
	return &messageServiceImpl{
		messages:        messages,
		chats:           chats,
		users:           users,
		defaultPageSize: defaultPageSize,
	}
}

// PostMessage stores a message from a current participant of the chat.
func (s *messageServiceImpl) PostMessage(ctx context.Context, chatID, senderID, content string) (*domain.Message, error) {
	ctx = detach(ctx)
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if err := requireParticipant(ctx, s.chats, chatID, senderID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Content:  content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.attachSenders(ctx, []*domain.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages lists a chat's messages newest first.
func (s *messageServiceImpl) ListMessages(ctx context.Context, chatID, requesterID string, opts domain.ListMessagesOptions) ([]domain.Message, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, domain.Validation("limit and offset cannot be negative")
	}
	if opts.Limit == 0 {
		opts.Limit = s.defaultPageSize
	}
	opts.Search = strings.TrimSpace(opts.Search)

	if err := requireParticipant(ctx, s.chats, chatID, requesterID); err != nil {
		return nil, err
	}

	messages, err := s.messages.List(ctx, chatID, opts)
	if err != nil {
		return nil, err
	}

	ptrs := make([]*domain.Message, len(messages))
	for i := range messages {
		ptrs[i] = &messages[i]
	}
	if err := s.attachSenders(ctx, ptrs); err != nil {
		return nil, err
	}
	return messages, nil
}

// EditMessage replaces a message's content. Only the sender may edit.
func (s *messageServiceImpl) EditMessage(ctx context.Context, messageID, requesterID, content string) (*domain.Message, error) {
	ctx = detach(ctx)
	if err := validateContent(content); err != nil {
		return nil, err
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, domain.NotFound("message %s not found", messageID)
		}
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, domain.Forbidden("only the sender can edit this message")
	}

	updated, err := s.messages.UpdateContent(ctx, messageID, content)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, domain.NotFound("message %s not found", messageID)
		}
		return nil, err
	}

	if err := s.attachSenders(ctx, []*domain.Message{updated}); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *messageServiceImpl) attachSenders(ctx context.Context, messages []*domain.Message) error {
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.SenderID
	}
	users, err := s.users.Lookup(ctx, ids)
	if err != nil {
		return err
	}
	for _, m := range messages {
		sender := summaryOf(users, m.SenderID)
		m.Sender = &sender
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return domain.Validation("content cannot be empty")
	}
	if len([]rune(content)) > maxMessageLength {
		return domain.Validation("content cannot exceed %d characters", maxMessageLength)
	}
	return nil
}
