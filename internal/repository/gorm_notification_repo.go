package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/log"
)

// GormNotificationRepository implements NotificationRepository using GORM.
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GORM-based notification repository.
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create persists a notification.
func (r *GormNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	l := log.Ctx(ctx)

	n.ID = uuid.New().String()
	n.IsRead = false

	model := domain.NotificationToModel(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldUserID, n.UserID).Msg("failed to create notification in db")
		return err
	}

	n.CreatedAt = model.CreatedAt
	return nil
}

// GetByID retrieves a notification by ID.
func (r *GormNotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	l := log.Ctx(ctx)

	var model domain.NotificationModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldNotificationID, id).Msg("failed to get notification by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListByUser retrieves a user's notifications, newest first.
func (r *GormNotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	l := log.Ctx(ctx)

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var models []domain.NotificationModel
	if err := query.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list notifications from db")
		return nil, err
	}

	notifications := make([]domain.Notification, len(models))
	for i, model := range models {
		notifications[i] = *model.ToDomain()
	}
	return notifications, nil
}

// MarkRead flips a notification to read. Marking an already read
// notification is not an error.
func (r *GormNotificationRepository) MarkRead(ctx context.Context, id string) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.NotificationModel{}).
		Where("id = ? AND is_read = ?", id, false).
		Update("is_read", true)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldNotificationID, id).Msg("failed to mark notification read")
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
