package hub

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(config.WebSocketConfig{SendBuffer: 64})
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func newTestClient(t *testing.T, h *Hub, id string) *Client {
	t.Helper()
	c := NewClient(id, h, nil, config.WebSocketConfig{SendBuffer: 64})
	if err := h.Register(c); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return c
}

func next(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		if !ok {
			t.Fatalf("send channel of %s closed", c.ID)
		}
		return data
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for frame on %s", c.ID)
	}
	return nil
}

func TestHubDeliversOnlyToSubscribers(t *testing.T) {
	h := startHub(t)
	a := newTestClient(t, h, "a")
	b := newTestClient(t, h, "b")
	c := newTestClient(t, h, "c")

	dest := ChatDestination("c1")
	for _, cl := range []*Client{a, b} {
		if err := h.Join(cl, dest); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	if err := h.Join(a, dest); err != nil {
		t.Fatalf("second join: %v", err)
	}
	if n := h.SubscriberCount(dest); n != 2 {
		t.Fatalf("expected 2 subscribers, got %d", n)
	}

	h.Publish(dest, []byte("hello"))
	if got := string(next(t, a)); got != "hello" {
		t.Fatalf("a: expected hello, got %q", got)
	}
	if got := string(next(t, b)); got != "hello" {
		t.Fatalf("b: expected hello, got %q", got)
	}
	if len(a.Send) != 0 {
		t.Fatal("a received the frame twice")
	}
	if len(c.Send) != 0 {
		t.Fatal("non-subscriber received a frame")
	}
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	h := startHub(t)
	a := newTestClient(t, h, "a")
	b := newTestClient(t, h, "b")
	dest := ChatDestination("c1")
	h.Join(a, dest)
	h.Join(b, dest)

	if !h.Leave(a, dest) {
		t.Fatal("expected a to have been subscribed")
	}
	if h.Leave(a, dest) {
		t.Fatal("expected second leave to report not subscribed")
	}

	h.Publish(dest, []byte("after"))
	next(t, b)
	if len(a.Send) != 0 {
		t.Fatal("client received a frame after leaving")
	}
}

func TestHubJoinRequiresRegistration(t *testing.T) {
	h := startHub(t)
	c := NewClient("ghost", h, nil, config.WebSocketConfig{})

	if err := h.Join(c, ChatDestination("c1")); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
	if err := h.Join(c, ""); !errors.Is(err, ErrInvalidDestination) {
		t.Fatalf("expected ErrInvalidDestination, got %v", err)
	}
}

func TestHubUnregisterClosesSendAndDropsSubscriptions(t *testing.T) {
	h := startHub(t)
	a := newTestClient(t, h, "a")
	h.Join(a, ChatDestination("c1"))
	h.Join(a, UserDestination("u1"))

	h.Unregister(a)

	if _, ok := <-a.Send; ok {
		t.Fatal("expected send channel closed")
	}
	if n := h.SubscriberCount(ChatDestination("c1")); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
	if n := h.ClientCount(); n != 0 {
		t.Fatalf("expected no clients, got %d", n)
	}
	if err := a.SendMessage(map[string]string{"type": "pong"}); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

func TestHubPreservesPublishOrder(t *testing.T) {
	h := startHub(t)
	a := newTestClient(t, h, "a")
	dest := ChatDestination("c1")
	h.Join(a, dest)

	for i := 0; i < 50; i++ {
		h.Publish(dest, []byte(strconv.Itoa(i)))
	}
	for i := 0; i < 50; i++ {
		if got := string(next(t, a)); got != strconv.Itoa(i) {
			t.Fatalf("expected frame %d, got %s", i, got)
		}
	}
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	h := startHub(t)
	slow := NewClient("slow", h, nil, config.WebSocketConfig{SendBuffer: 1})
	if err := h.Register(slow); err != nil {
		t.Fatalf("register: %v", err)
	}
	fast := newTestClient(t, h, "fast")
	dest := ChatDestination("c1")
	h.Join(slow, dest)
	h.Join(fast, dest)

	h.Publish(dest, []byte("1"))
	h.Publish(dest, []byte("2"))
	next(t, fast)
	next(t, fast)

	if n := h.SubscriberCount(dest); n != 1 {
		t.Fatalf("expected slow client dropped, got %d subscribers", n)
	}
}

func TestHubPublishAndCloseDropsDestination(t *testing.T) {
	h := startHub(t)
	a := newTestClient(t, h, "a")
	dest := ChatDestination("c1")
	h.Join(a, dest)
	h.Join(a, UserDestination("u1"))

	h.PublishAndClose(dest, []byte("gone"))
	if got := string(next(t, a)); got != "gone" {
		t.Fatalf("expected final frame, got %q", got)
	}
	if n := h.SubscriberCount(dest); n != 0 {
		t.Fatalf("expected destination closed, got %d subscribers", n)
	}
	if n := h.SubscriberCount(UserDestination("u1")); n != 1 {
		t.Fatalf("expected other subscriptions kept, got %d", n)
	}
}

func TestRelayFansOutBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := startHub(t)
	bus := pubsub.NewMemoryBus()
	defer bus.Close()

	relay := NewRelay(bus, h)
	errc := make(chan error, 1)
	go func() { errc <- relay.Run(ctx) }()

	member := newTestClient(t, h, "member")
	other := newTestClient(t, h, "other")
	h.Join(member, ChatDestination("c1"))
	h.Join(other, ChatDestination("c2"))

	publisher := NewEventPublisher(bus)
	msg := domain.Message{ID: "m1", ChatID: "c1", SenderID: "u1", Content: "hi"}

	var frame struct {
		Type        string          `json:"type"`
		Destination string          `json:"destination"`
		Data        json.RawMessage `json:"data"`
	}
	// The relay opens its streams asynchronously; retry until the first event lands.
	deadline := time.After(2 * time.Second)
	for delivered := false; !delivered; {
		if err := publisher.Publish(ctx, domain.MessageCreated{Message: msg}); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case data := <-member.Send:
			if err := json.Unmarshal(data, &frame); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			delivered = true
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("relay never delivered")
		}
	}

	if frame.Type != pubsub.EventMessageCreated || frame.Destination != pubsub.ChatChannel("c1") {
		t.Fatalf("unexpected frame %+v", frame)
	}
	if len(other.Send) != 0 {
		t.Fatal("event leaked to another chat")
	}

	// Drain retries, then close the chat.
	for len(member.Send) > 0 {
		<-member.Send
	}
	if err := publisher.Publish(ctx, domain.ChatDeleted{ChatID: "c1", DeletedBy: "u1"}); err != nil {
		t.Fatalf("publish delete: %v", err)
	}
	for {
		data := next(t, member)
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if frame.Type == pubsub.EventChatDeleted {
			break
		}
	}
	if n := h.SubscriberCount(ChatDestination("c1")); n != 0 {
		t.Fatalf("expected chat destination closed, got %d", n)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("relay returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRelayDropsMalformedEvents(t *testing.T) {
	h := startHub(t)
	a := newTestClient(t, h, "a")
	h.Join(a, ChatDestination("c1"))
	relay := NewRelay(pubsub.NewMemoryBus(), h)

	relay.Dispatch(&pubsub.Envelope{Type: "bogus", Destination: pubsub.ChatChannel("c1")})
	relay.Dispatch(&pubsub.Envelope{Type: pubsub.EventMessageCreated, Destination: pubsub.ChatChannel("c1"), Payload: []byte(`{"message":{"chat_id":"c2"}}`)})
	relay.Dispatch(&pubsub.Envelope{Type: pubsub.EventChatDeleted, Destination: pubsub.ChatChannel("c1"), Payload: []byte(`{"chat_id":"c1"}`)})

	data := next(t, a)
	var frame struct {
		Type string `json:"type"`
	}
	json.Unmarshal(data, &frame)
	if frame.Type != pubsub.EventChatDeleted {
		t.Fatalf("expected only the valid event, got %s", frame.Type)
	}
}

func TestHubJoinSeesEarlierPublishes(t *testing.T) {
	h := startHub(t)
	dest := ChatDestination("c1")

	for i := 0; i < 50; i++ {
		c := newTestClient(t, h, "late-"+strconv.Itoa(i))
		h.Publish(dest, []byte("before"))
		if err := h.Join(c, dest); err != nil {
			t.Fatalf("join: %v", err)
		}
		h.Publish(dest, []byte("after"))

		if got := string(next(t, c)); got != "after" {
			t.Fatalf("client %s got %q published before it joined", c.ID, got)
		}
		if !h.Leave(c, dest) {
			t.Fatalf("leave %s failed", c.ID)
		}
	}
}
