package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-chat/internal/cache"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/presence"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/pkg/log"
)

const defaultUserSearchLimit = 20

type userServiceImpl struct {
	repo        repository.UserRepository
	cache       cache.UserCache
	presence    presence.Tracker
	searchLimit int
	sf          singleflight.Group
}

// NewUserService creates a user service. userCache may be nil, in which case
// every read goes to the repository.
func NewUserService(
	repo repository.UserRepository,
	userCache cache.UserCache,
	tracker presence.Tracker,
	searchLimit int,
) UserService {
	if searchLimit <= 0 {
		searchLimit = defaultUserSearchLimit
	}
	return &userServiceImpl{
		repo:        repo,
		cache:       userCache,
		presence:    tracker,
		searchLimit: searchLimit,
	}
}

// GetUser returns a user with its presence flag.
func (s *userServiceImpl) GetUser(ctx context.Context, userID string) (*domain.UserResponse, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.NotFound("user %s not found", userID)
		}
		return nil, err
	}

	online, err := s.presence.IsOnline(ctx, userID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("presence lookup failed")
	}
	return &domain.UserResponse{User: *user, Online: online}, nil
}

// SearchUsers finds users whose name or email contains term.
func (s *userServiceImpl) SearchUsers(ctx context.Context, term string) ([]domain.User, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, domain.Validation("search term is required")
	}
	users, err := s.repo.Search(ctx, term, s.searchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

// Lookup returns the known users among userIDs, keyed by id.
func (s *userServiceImpl) Lookup(ctx context.Context, userIDs []string) (map[string]*domain.User, error) {
	ids := make([]string, 0, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return map[string]*domain.User{}, nil
	}
	return s.repo.GetByIDs(ctx, ids)
}

// SyncPrincipal makes sure the authenticated principal has a user record. The
// cached record short-circuits the write when nothing changed.
func (s *userServiceImpl) SyncPrincipal(ctx context.Context, userID, username string) error {
	ctx = detach(ctx)
	if userID == "" {
		return domain.Unauthorized("missing principal")
	}

	existing, err := s.loadUser(ctx, userID)
	switch {
	case err == nil:
		if username == "" || existing.Name == username {
			return nil
		}
	case !errors.Is(err, repository.ErrUserNotFound):
		return err
	}

	name := username
	if name == "" {
		name = userID
	}
	if err := s.repo.Upsert(ctx, &domain.User{ID: userID, Name: name}); err != nil {
		return fmt.Errorf("failed to sync principal: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// loadUser reads a user through the cache. Concurrent misses for one id share
// a single repository read, which no single caller can cancel.
func (s *userServiceImpl) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	if s.cache == nil {
		return s.repo.GetByID(ctx, userID)
	}

	v, err, _ := s.sf.Do(userID, func() (interface{}, error) {
		return s.readThrough(detach(ctx), userID)
	})
	if err != nil {
		return nil, err
	}
	user := *v.(*domain.User)
	return &user, nil
}

func (s *userServiceImpl) readThrough(ctx context.Context, userID string) (*domain.User, error) {
	l := log.Ctx(ctx)

	user, err := s.cache.Get(ctx, userID)
	switch {
	case err == nil:
		return user, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("user cache read failed")
	}

	user, err = s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, user); err != nil {
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("user cache write failed")
	}
	return user, nil
}

func (s *userServiceImpl) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Forget(ctx, userID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("user cache invalidation failed")
	}
}
