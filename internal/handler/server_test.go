package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/presence"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/internal/service"
	"github.com/weiawesome/wes-chat/internal/testutil"
	"github.com/weiawesome/wes-chat/pkg/jwt"
	"github.com/weiawesome/wes-chat/pkg/middleware"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
	"github.com/weiawesome/wes-chat/pkg/storage"
)

type testServer struct {
	router *gin.Engine
	tokens *jwt.Manager
	hub    *hub.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	testutil.SeedUsers(t, db, "u1", "u2", "u3")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := pubsub.NewMemoryBus()
	t.Cleanup(func() { bus.Close() })

	wsCfg := config.WebSocketConfig{
		PingInterval:   time.Minute,
		PongWait:       2 * time.Minute,
		WriteWait:      time.Second,
		MaxMessageSize: 8192,
		SendBuffer:     64,
	}
	wsHub := hub.NewHub(wsCfg)
	go wsHub.Run(ctx)
	go hub.NewRelay(bus, wsHub).Run(ctx)
	publisher := hub.NewEventPublisher(bus)

	store, err := storage.NewDiskStore(storage.DiskConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	tokens, err := jwt.NewManager("test-secret", "wes-chat", time.Hour)
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}

	chatCfg := config.ChatConfig{GrantCreatorAdmin: true, VerifyJoin: true, DefaultPageSize: 50, MaxPictureSize: 1 << 20}
	chatRepo := repository.NewGormChatRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)
	tracker := presence.NewMemoryTracker()

	users := service.NewUserService(repository.NewGormUserRepository(db), nil, tracker, 20)
	notifications := service.NewNotificationService(repository.NewGormNotificationRepository(db), publisher)
	chats := service.NewChatService(chatRepo, messageRepo, users, notifications, publisher, store, chatCfg)
	messages := service.NewMessageService(messageRepo, chatRepo, users, chatCfg.DefaultPageSize)
	sessions := service.NewSessionService(wsHub, tokens, chats, messages, notifications, users, publisher, tracker, chatCfg)

	r := gin.New()
	NewHandler(chats, messages, sessions, notifications, users, middleware.NewAuthMiddleware(tokens), chatCfg.DefaultPageSize).RegisterRoutes(r)
	NewWSHandler(wsHub, sessions, wsCfg).RegisterRoutes(r)

	return &testServer{router: r, tokens: tokens, hub: wsHub}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.tokens.GenerateToken(userID, "name-"+userID)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends a JSON request as userID and decodes the envelope.
func (s *testServer) do(t *testing.T, method, path, userID string, body interface{}) (int, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w.Code, resp
}
