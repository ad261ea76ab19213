package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/presence"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/internal/testutil"
	"github.com/weiawesome/wes-chat/pkg/jwt"
	"github.com/weiawesome/wes-chat/pkg/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) ofType(eventType string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeValidator map[string]*jwt.Claims

func (v fakeValidator) ValidateToken(token string) (*jwt.Claims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, jwt.ErrInvalidToken
}

type fixture struct {
	ctx           context.Context
	cfg           config.ChatConfig
	db            *gorm.DB
	chatRepo      *repository.GormChatRepository
	messageRepo   *repository.GormMessageRepository
	chats         ChatService
	messages      MessageService
	notifications NotificationService
	users         UserService
	sessions      SessionService
	publisher     *recordingPublisher
	tracker       *presence.MemoryTracker
	hub           *hub.Hub
	store         *storage.DiskStore
	tokens        fakeValidator
}

func defaultChatConfig() config.ChatConfig {
	return config.ChatConfig{
		GrantCreatorAdmin: true,
		VerifyJoin:        true,
		DefaultPageSize:   50,
		MaxPictureSize:    1 << 20,
		UserSearchLimit:   20,
	}
}

func newFixture(t *testing.T, cfg config.ChatConfig) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	testutil.SeedUsers(t, db, "u1", "u2", "u3", "u4")

	store, err := storage.NewDiskStore(storage.DiskConfig{BasePath: t.TempDir(), PublicURL: "/media"})
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(config.WebSocketConfig{SendBuffer: 64})
	go h.Run(ctx)

	f := &fixture{
		ctx:         context.Background(),
		cfg:         cfg,
		db:          db,
		chatRepo:    repository.NewGormChatRepository(db),
		messageRepo: repository.NewGormMessageRepository(db),
		publisher:   &recordingPublisher{},
		tracker:     presence.NewMemoryTracker(),
		hub:         h,
		store:       store,
		tokens: fakeValidator{
			"t1": {UserID: "u1", Username: "name-u1"},
			"t2": {UserID: "u2", Username: "name-u2"},
			"t3": {UserID: "u3", Username: "name-u3"},
		},
	}
	f.users = NewUserService(repository.NewGormUserRepository(db), nil, f.tracker, cfg.UserSearchLimit)
	f.notifications = NewNotificationService(repository.NewGormNotificationRepository(db), f.publisher)
	f.chats = NewChatService(f.chatRepo, f.messageRepo, f.users, f.notifications, f.publisher, store, cfg)
	f.messages = NewMessageService(f.messageRepo, f.chatRepo, f.users, cfg.DefaultPageSize)
	f.sessions = NewSessionService(h, f.tokens, f.chats, f.messages, f.notifications, f.users, f.publisher, f.tracker, cfg)
	return f
}

// createChat creates an unnamed chat owned by creator.
func (f *fixture) createChat(t *testing.T, creator string, members ...string) *domain.ChatDetails {
	t.Helper()
	chat, err := f.chats.CreateChat(f.ctx, creator, &domain.CreateChatRequest{MemberIDs: members})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	return chat
}

func expectKind(t *testing.T, err error, kind domain.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := domain.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func resultFor(t *testing.T, results []domain.MemberResult, userID string) domain.MemberResult {
	t.Helper()
	for _, r := range results {
		if r.UserID == userID {
			return r
		}
	}
	t.Fatalf("no result for %s in %+v", userID, results)
	return domain.MemberResult{}
}

var errPublish = errors.New("bus down")
