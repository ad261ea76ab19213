package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/log"
)

// GormChatRepository implements ChatRepository using GORM.
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GORM-based chat repository.
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// Transaction runs fn inside a database transaction.
func (r *GormChatRepository) Transaction(ctx context.Context, fn func(repo ChatRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormChatRepository{db: tx})
	})
}

// Create creates a chat together with its initial participants.
func (r *GormChatRepository) Create(ctx context.Context, chat *domain.Chat, participants []domain.Participant) error {
	l := log.Ctx(ctx)

	chat.ID = uuid.New().String()
	model := domain.ChatToModel(chat)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(participants) == 0 {
			return nil
		}
		rows := make([]domain.ParticipantModel, len(participants))
		for i, p := range participants {
			rows[i] = domain.ParticipantModel{ChatID: chat.ID, UserID: p.UserID, IsAdmin: p.IsAdmin}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		l.Error().Err(err).Msg("failed to create chat in db")
		return err
	}

	chat.CreatedAt = model.CreatedAt
	chat.UpdatedAt = model.UpdatedAt
	l.Debug().Str(log.FieldChatID, chat.ID).Int("participants", len(participants)).Msg("chat created in db")
	return nil
}

// GetByID retrieves a chat by ID.
func (r *GormChatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	l := log.Ctx(ctx)

	var model domain.ChatModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldChatID, id).Msg("failed to get chat by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListForUser retrieves the chats a user participates in, most recently updated first.
func (r *GormChatRepository) ListForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	l := log.Ctx(ctx)

	db := r.db.WithContext(ctx)
	joined := db.Model(&domain.ParticipantModel{}).Select("chat_id").Where("user_id = ?", userID)

	var models []domain.ChatModel
	result := db.
		Where("id IN (?)", joined).
		Order("updated_at DESC").
		Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldUserID, userID).Msg("failed to list user chats from db")
		return nil, result.Error
	}

	chats := make([]domain.Chat, len(models))
	for i, model := range models {
		chats[i] = *model.ToDomain()
	}
	return chats, nil
}

// UpdateName sets or clears the chat name.
func (r *GormChatRepository) UpdateName(ctx context.Context, chatID string, name *string) error {
	return r.updateChat(ctx, chatID, map[string]interface{}{"name": name})
}

// UpdatePicture sets the chat picture URL.
func (r *GormChatRepository) UpdatePicture(ctx context.Context, chatID, picture string) error {
	return r.updateChat(ctx, chatID, map[string]interface{}{"picture": picture})
}

func (r *GormChatRepository) updateChat(ctx context.Context, chatID string, fields map[string]interface{}) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.ChatModel{}).Where("id = ?", chatID).Updates(fields)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldChatID, chatID).Msg("failed to update chat in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Delete removes the chat, its participants and its messages in one transaction.
func (r *GormChatRepository) Delete(ctx context.Context, chatID string) error {
	l := log.Ctx(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.ChatModel{}).Where("id = ?", chatID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrChatNotFound
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&domain.MessageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&domain.ParticipantModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", chatID).Delete(&domain.ChatModel{}).Error
	})
	if err != nil {
		if !errors.Is(err, ErrChatNotFound) {
			l.Error().Err(err).Str(log.FieldChatID, chatID).Msg("failed to delete chat in db")
		}
		return err
	}
	l.Debug().Str(log.FieldChatID, chatID).Msg("chat deleted in db")
	return nil
}

// ListParticipants retrieves the participants of a chat in join order.
func (r *GormChatRepository) ListParticipants(ctx context.Context, chatID string) ([]domain.Participant, error) {
	l := log.Ctx(ctx)

	var models []domain.ParticipantModel
	result := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("created_at ASC, user_id ASC").Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldChatID, chatID).Msg("failed to list participants")
		return nil, result.Error
	}

	participants := make([]domain.Participant, len(models))
	for i, model := range models {
		participants[i] = model.ToDomain()
	}
	return participants, nil
}

// ListParticipantsForChats retrieves participants for several chats at once.
func (r *GormChatRepository) ListParticipantsForChats(ctx context.Context, chatIDs []string) (map[string][]domain.Participant, error) {
	l := log.Ctx(ctx)

	out := make(map[string][]domain.Participant, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}

	var models []domain.ParticipantModel
	result := r.db.WithContext(ctx).Where("chat_id IN ?", chatIDs).Order("created_at ASC, user_id ASC").Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Msg("failed to list participants for chats")
		return nil, result.Error
	}
	for _, model := range models {
		out[model.ChatID] = append(out[model.ChatID], model.ToDomain())
	}
	return out, nil
}

// GetParticipant retrieves one participant row.
func (r *GormChatRepository) GetParticipant(ctx context.Context, chatID, userID string) (*domain.Participant, error) {
	l := log.Ctx(ctx)

	var model domain.ParticipantModel
	result := r.db.WithContext(ctx).First(&model, "chat_id = ? AND user_id = ?", chatID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldChatID, chatID).Str(log.FieldUserID, userID).Msg("failed to get participant")
		return nil, result.Error
	}
	p := model.ToDomain()
	return &p, nil
}

// AddParticipant inserts a participant, leaving an existing row untouched.
func (r *GormChatRepository) AddParticipant(ctx context.Context, p domain.Participant) (bool, error) {
	l := log.Ctx(ctx)

	model := domain.ParticipantModel{ChatID: p.ChatID, UserID: p.UserID, IsAdmin: p.IsAdmin}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldChatID, p.ChatID).Str(log.FieldUserID, p.UserID).Msg("failed to add participant")
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RemoveParticipant deletes a participant row.
func (r *GormChatRepository) RemoveParticipant(ctx context.Context, chatID, userID string) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Where("chat_id = ? AND user_id = ?", chatID, userID).Delete(&domain.ParticipantModel{})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldChatID, chatID).Str(log.FieldUserID, userID).Msg("failed to remove participant")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// SetAdmin sets the admin flag of a participant.
func (r *GormChatRepository) SetAdmin(ctx context.Context, chatID, userID string, isAdmin bool) error {
	l := log.Ctx(ctx)

	// Select forces the write even when isAdmin is the zero value.
	result := r.db.WithContext(ctx).Model(&domain.ParticipantModel{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Select("is_admin").
		Updates(domain.ParticipantModel{IsAdmin: isAdmin})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldChatID, chatID).Str(log.FieldUserID, userID).Msg("failed to set admin flag")
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.ParticipantModel{}).
			Where("chat_id = ? AND user_id = ?", chatID, userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrParticipantNotFound
		}
	}
	return nil
}
