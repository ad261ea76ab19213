package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/repository"
)

// loadChat reads a chat and its current participant rows.
func loadChat(ctx context.Context, repo repository.ChatRepository, chatID string) (*domain.Chat, []domain.Participant, error) {
	chat, err := repo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return nil, nil, chatNotFound(chatID)
		}
		return nil, nil, err
	}
	participants, err := repo.ListParticipants(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	return chat, participants, nil
}

// requireParticipant re-reads the participant row for userID. A missing chat
// is reported as NotFound, a missing row as Forbidden.
func requireParticipant(ctx context.Context, repo repository.ChatRepository, chatID, userID string) error {
	_, err := repo.GetParticipant(ctx, chatID, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrParticipantNotFound) {
		return err
	}
	if _, err := repo.GetByID(ctx, chatID); err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return chatNotFound(chatID)
		}
		return err
	}
	return errNotParticipant
}

// authorizeAdmin checks that requesterID may perform an admin-only action on a
// group chat. The action completes the message "direct chats cannot ...".
func authorizeAdmin(chat *domain.Chat, participants []domain.Participant, requesterID, action string) error {
	p, ok := domain.FindParticipant(participants, requesterID)
	if !ok {
		return errNotParticipant
	}
	if domain.Classify(chat, participants) == domain.ChatKindDirect {
		return domain.DirectChatNotAllowed(action)
	}
	if len(participants) < 2 {
		return domain.Conflict("chats with fewer than two participants cannot %s", action)
	}
	if !p.IsAdmin {
		return domain.Forbidden("only chat admins can do this")
	}
	return nil
}

var errNotParticipant = domain.Forbidden("you are not a participant of this chat")

func chatNotFound(chatID string) error {
	return domain.NotFound("chat %s not found", chatID)
}
