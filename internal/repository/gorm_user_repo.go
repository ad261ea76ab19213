package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/log"
)

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// GetByID retrieves a user by ID.
func (r *GormUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	l := log.Ctx(ctx)

	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldUserID, id).Msg("failed to get user by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetByIDs retrieves the users that exist among ids.
func (r *GormUserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	l := log.Ctx(ctx)

	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var models []domain.UserModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		l.Error().Err(err).Int("count", len(ids)).Msg("failed to get users by ids")
		return nil, err
	}
	for i := range models {
		out[models[i].ID] = models[i].ToDomain()
	}
	return out, nil
}

// Search finds users whose name or email contains term, case-insensitively.
func (r *GormUserRepository) Search(ctx context.Context, term string, limit int) ([]domain.User, error) {
	l := log.Ctx(ctx)

	pattern := containsPattern(term)
	query := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? ESCAPE '"+likeEscape+"' OR LOWER(email) LIKE ? ESCAPE '"+likeEscape+"'", pattern, pattern).
		Order("name ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []domain.UserModel
	if err := query.Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to search users from db")
		return nil, err
	}

	users := make([]domain.User, len(models))
	for i, model := range models {
		users[i] = *model.ToDomain()
	}
	return users, nil
}

// Upsert inserts the user or refreshes its profile fields.
func (r *GormUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	l := log.Ctx(ctx)

	model := domain.UserToModel(user)
	columns := []string{"name", "updated_at"}
	if user.Email != "" {
		columns = append(columns, "email")
	}
	if user.ProfilePicture != "" {
		columns = append(columns, "profile_picture")
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldUserID, user.ID).Msg("failed to upsert user")
		return result.Error
	}
	return nil
}
