package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

func TestEncodeDecodeEvent(t *testing.T) {
	events := []Event{
		MessageCreated{Message: Message{ID: "m1", ChatID: "c1", SenderID: "u1", Content: "hi"}},
		MessageUpdated{Message: Message{ID: "m1", ChatID: "c1", SenderID: "u1", Content: "edited"}},
		NotificationCreated{Notification: Notification{ID: "n1", UserID: "u2", Type: NotificationChatAdded}},
		ChatDeleted{ChatID: "c1", DeletedBy: "u1"},
	}

	for _, in := range events {
		t.Run(in.EventType(), func(t *testing.T) {
			ev, err := EncodeEvent(in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if ev.Destination != in.Destination() {
				t.Fatalf("expected destination %s, got %s", in.Destination(), ev.Destination)
			}

			out, err := DecodeEvent(ev)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.EventType() != in.EventType() || out.Destination() != in.Destination() {
				t.Fatalf("expected %s to %s, got %s to %s", in.EventType(), in.Destination(), out.EventType(), out.Destination())
			}
		})
	}
}

func TestDecodeEventRejectsMismatchedDestination(t *testing.T) {
	ev, err := EncodeEvent(MessageCreated{Message: Message{ID: "m1", ChatID: "c1"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ev.Destination = pubsub.ChatChannel("c2")

	if _, err := DecodeEvent(ev); err == nil {
		t.Fatal("expected destination mismatch error")
	}
}

func TestDecodeEventRejectsUnknownType(t *testing.T) {
	ev := &pubsub.Envelope{Type: "chat.renamed", Destination: pubsub.ChatChannel("c1"), Payload: json.RawMessage(`{}`)}
	if _, err := DecodeEvent(ev); err == nil {
		t.Fatal("expected unknown type error")
	}
}

func TestNewEventFrame(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw, err := NewEventFrame(ChatDeleted{ChatID: "c1", DeletedBy: "u1"}, ts)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}

	var frame struct {
		Type        string          `json:"type"`
		Destination string          `json:"destination"`
		Data        json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Type != pubsub.EventChatDeleted {
		t.Fatalf("expected %s, got %s", pubsub.EventChatDeleted, frame.Type)
	}
	if frame.Destination != pubsub.ChatChannel("c1") {
		t.Fatalf("unexpected destination %s", frame.Destination)
	}

	var data ChatDeleted
	if err := json.Unmarshal(frame.Data, &data); err != nil || data.DeletedBy != "u1" {
		t.Fatalf("unexpected data %s (err=%v)", frame.Data, err)
	}
}
