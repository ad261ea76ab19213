package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

type wsFrame struct {
	Type        string          `json:"type"`
	Success     bool            `json:"success"`
	Code        string          `json:"code"`
	ChatID      string          `json:"chat_id"`
	RequestID   string          `json:"request_id"`
	Destination string          `json:"destination"`
	Data        json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// expect reads frames until one of frameType arrives.
func expect(t *testing.T, conn *websocket.Conn, frameType string) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var fr wsFrame
		if err := conn.ReadJSON(&fr); err != nil {
			t.Fatalf("waiting for %s: %v", frameType, err)
		}
		if fr.Type == frameType {
			return fr
		}
	}
}

func TestWebSocketMessageFanOut(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	_, resp := s.do(t, http.MethodPost, "/api/v1/chats", "u1", map[string]interface{}{"user_ids": []string{"u2"}})
	var chat domain.ChatDetails
	decode(t, resp.Data, &chat)

	alice := dial(t, srv)
	bob := dial(t, srv)
	eve := dial(t, srv)

	send(t, alice, map[string]string{"type": "send_message", "chat_id": chat.ID, "content": "too early"})
	if fr := expect(t, alice, domain.FrameError); fr.Code != string(domain.KindUnauthorized) {
		t.Fatalf("expected unauthorized before auth, got %+v", fr)
	}

	for conn, user := range map[*websocket.Conn]string{alice: "u1", bob: "u2", eve: "u3"} {
		send(t, conn, map[string]string{"type": "auth", "token": s.token(t, user)})
		if fr := expect(t, conn, domain.FrameAuthResult); !fr.Success {
			t.Fatalf("auth %s failed: %+v", user, fr)
		}
	}

	send(t, alice, map[string]string{"type": "join_chat", "chat_id": chat.ID})
	expect(t, alice, domain.FrameChatJoined)
	send(t, bob, map[string]string{"type": "join_chat", "chat_id": chat.ID})
	expect(t, bob, domain.FrameChatJoined)
	send(t, eve, map[string]string{"type": "join_chat", "chat_id": chat.ID})
	if fr := expect(t, eve, domain.FrameError); fr.Code != string(domain.KindForbidden) {
		t.Fatalf("expected outsider join to be forbidden, got %+v", fr)
	}

	send(t, alice, map[string]string{"type": "send_message", "chat_id": chat.ID, "content": "hello bob", "request_id": "r1"})
	if ack := expect(t, alice, domain.FrameMessageAck); ack.RequestID != "r1" {
		t.Fatalf("expected ack for r1, got %+v", ack)
	}

	ev := expect(t, bob, pubsub.EventMessageCreated)
	if ev.Destination != pubsub.ChatChannel(chat.ID) {
		t.Fatalf("unexpected destination %s", ev.Destination)
	}
	var created domain.MessageCreated
	decode(t, ev.Data, &created)
	if created.Message.Content != "hello bob" || created.Message.SenderID != "u1" {
		t.Fatalf("unexpected event payload %+v", created)
	}
	expect(t, alice, pubsub.EventMessageCreated)

	send(t, eve, map[string]string{"type": "ping"})
	expect(t, eve, domain.FramePong)

	send(t, bob, map[string]string{"type": "nonsense"})
	if fr := expect(t, bob, domain.FrameError); fr.Code != domain.CodeBadRequest {
		t.Fatalf("expected bad request, got %+v", fr)
	}
}

func TestWebSocketNotificationDelivery(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	carol := dial(t, srv)
	send(t, carol, map[string]string{"type": "auth", "token": s.token(t, "u3")})
	expect(t, carol, domain.FrameAuthResult)

	if code, _ := s.do(t, http.MethodPost, "/api/v1/chats", "u1", map[string]interface{}{"user_ids": []string{"u3"}}); code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", code)
	}

	ev := expect(t, carol, pubsub.EventNotificationCreated)
	var created domain.NotificationCreated
	decode(t, ev.Data, &created)
	if created.Notification.UserID != "u3" || created.Notification.Type != domain.NotificationChatAdded {
		t.Fatalf("unexpected notification %+v", created.Notification)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/chat/ws", nil)
	if !check(req) {
		t.Fatal("expected request without origin to pass")
	}
	req.Header.Set("Origin", "https://app.example.com")
	if !check(req) {
		t.Fatal("expected allowed origin to pass")
	}
	req.Header.Set("Origin", "https://evil.example.com")
	if check(req) {
		t.Fatal("expected unknown origin to be rejected")
	}
	if !originChecker([]string{"*"})(req) || !originChecker(nil)(req) {
		t.Fatal("expected wildcard and empty lists to allow any origin")
	}
}
