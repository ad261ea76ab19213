package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create persists a message and bumps the chat's updated_at. Message ids are
// ULIDs so ids issued in the same instant still sort in commit order.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	l := log.Ctx(ctx)

	now := time.Now().UTC()
	msg.ID = ulid.Make().String()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	model := domain.MessageToModel(msg)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Model(&domain.ChatModel{}).Where("id = ?", msg.ChatID).Update("updated_at", now).Error
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldChatID, msg.ChatID).Msg("failed to create message in db")
		return err
	}

	l.Debug().Str(log.FieldMessageID, msg.ID).Str(log.FieldChatID, msg.ChatID).Msg("message created in db")
	return nil
}

// GetByID retrieves a message by ID.
func (r *GormMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	l := log.Ctx(ctx)

	var model domain.MessageModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldMessageID, id).Msg("failed to get message by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// List retrieves a chat's messages newest first, optionally filtered by a
// case-insensitive substring of the content.
func (r *GormMessageRepository) List(ctx context.Context, chatID string, opts domain.ListMessagesOptions) ([]domain.Message, error) {
	l := log.Ctx(ctx)

	query := r.db.WithContext(ctx).Model(&domain.MessageModel{}).Where("chat_id = ?", chatID)
	if opts.Search != "" {
		query = query.Where("LOWER(content) LIKE ? ESCAPE '"+likeEscape+"'", containsPattern(opts.Search))
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	var models []domain.MessageModel
	if err := query.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldChatID, chatID).Msg("failed to list messages from db")
		return nil, err
	}

	messages := make([]domain.Message, len(models))
	for i, model := range models {
		messages[i] = *model.ToDomain()
	}
	return messages, nil
}

// LatestForChats returns the most recent message of each chat that has one,
// in a single query ranking messages per chat.
func (r *GormMessageRepository) LatestForChats(ctx context.Context, chatIDs []string) (map[string]*domain.Message, error) {
	out := make(map[string]*domain.Message, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}

	db := r.db.WithContext(ctx)
	ranked := db.Model(&domain.MessageModel{}).
		Select("messages.*, ROW_NUMBER() OVER (PARTITION BY chat_id ORDER BY created_at DESC, id DESC) AS pos").
		Where("chat_id IN ?", chatIDs)

	var models []domain.MessageModel
	err := db.Table("(?) AS ranked", ranked).
		Select("id, chat_id, sender_id, content, created_at, updated_at").
		Where("pos = 1").
		Find(&models).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int("chats", len(chatIDs)).Msg("failed to get latest messages")
		return nil, err
	}
	for i := range models {
		out[models[i].ChatID] = models[i].ToDomain()
	}
	return out, nil
}

// UpdateContent replaces a message's content. created_at is never touched.
func (r *GormMessageRepository) UpdateContent(ctx context.Context, id, content string) (*domain.Message, error) {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":    content,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldMessageID, id).Msg("failed to update message in db")
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrMessageNotFound
	}
	return r.GetByID(ctx, id)
}

// CountByChat counts the messages of a chat.
func (r *GormMessageRepository) CountByChat(ctx context.Context, chatID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).Where("chat_id = ?", chatID).Count(&count).Error
	return count, err
}
