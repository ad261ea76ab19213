package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-chat/internal/audit"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/pkg/log"
)

type notificationServiceImpl struct {
	repo      repository.NotificationRepository
	publisher EventPublisher
}

// NewNotificationService creates a new notification service.
func NewNotificationService(repo repository.NotificationRepository, publisher EventPublisher) NotificationService {
	return &notificationServiceImpl{
		repo:      repo,
		publisher: publisher,
	}
}

// Notify stores a notification for userID and publishes it to the user's
// destination. A failed publish is logged; the stored notification stands.
func (s *notificationServiceImpl) Notify(ctx context.Context, userID, notificationType string, payload interface{}) (*domain.Notification, error) {
	ctx = detach(ctx)
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	n := &domain.Notification{
		UserID:  userID,
		Type:    notificationType,
		Payload: data,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, domain.NotificationCreated{Notification: *n}); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldNotificationID, n.ID).Str(log.FieldUserID, userID).Msg("failed to publish notification")
	}
	return n, nil
}

// List returns a user's notifications, newest first.
func (s *notificationServiceImpl) List(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly)
}

// MarkRead marks one of the requester's notifications as read.
func (s *notificationServiceImpl) MarkRead(ctx context.Context, notificationID, requesterID string) (*domain.Notification, error) {
	ctx = detach(ctx)
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return nil, domain.NotFound("notification %s not found", notificationID)
		}
		return nil, err
	}
	if n.UserID != requesterID {
		return nil, domain.Forbidden("notification belongs to another user")
	}
	if n.IsRead {
		return n, nil
	}

	if err := s.repo.MarkRead(ctx, notificationID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return nil, domain.NotFound("notification %s not found", notificationID)
		}
		return nil, err
	}
	n.IsRead = true

	audit.Record(ctx, audit.MarkRead, requesterID, audit.Notification(notificationID))
	return n, nil
}
