package cache

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-chat/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// UserCache holds user read-model records keyed by user id. Entries expire
// after the TTL the implementation was built with.
type UserCache interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Put(ctx context.Context, user *domain.User) error
	Forget(ctx context.Context, userIDs ...string) error
}
