package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

// Event is a live event delivered to a destination. The set of
// implementations is closed: MessageCreated, MessageUpdated,
// NotificationCreated and ChatDeleted.
type Event interface {
	EventType() string
	Destination() string
	isEvent()
}

// MessageCreated is published to a chat destination after a message commits.
type MessageCreated struct {
	Message Message `json:"message"`
}

func (MessageCreated) EventType() string     { return pubsub.EventMessageCreated }
func (e MessageCreated) Destination() string { return pubsub.ChatChannel(e.Message.ChatID) }
func (MessageCreated) isEvent()              {}

// MessageUpdated is published to a chat destination after an edit commits.
type MessageUpdated struct {
	Message Message `json:"message"`
}

func (MessageUpdated) EventType() string     { return pubsub.EventMessageUpdated }
func (e MessageUpdated) Destination() string { return pubsub.ChatChannel(e.Message.ChatID) }
func (MessageUpdated) isEvent()              {}

// NotificationCreated is published to the owning user's destination.
type NotificationCreated struct {
	Notification Notification `json:"notification"`
}

func (NotificationCreated) EventType() string { return pubsub.EventNotificationCreated }
func (e NotificationCreated) Destination() string {
	return pubsub.UserChannel(e.Notification.UserID)
}
func (NotificationCreated) isEvent() {}

// ChatDeleted is published to a chat destination after the chat is removed.
// Subscriptions to the destination are dropped once it is delivered.
type ChatDeleted struct {
	ChatID    string `json:"chat_id"`
	DeletedBy string `json:"deleted_by"`
}

func (ChatDeleted) EventType() string     { return pubsub.EventChatDeleted }
func (e ChatDeleted) Destination() string { return pubsub.ChatChannel(e.ChatID) }
func (ChatDeleted) isEvent()              {}

// EncodeEvent seals a domain event for the bus.
func EncodeEvent(e Event) (*pubsub.Envelope, error) {
	return pubsub.Seal(e.EventType(), e.Destination(), e)
}

// DecodeEvent resolves a bus envelope into its typed domain event.
func DecodeEvent(ev *pubsub.Envelope) (Event, error) {
	var (
		out Event
		err error
	)
	switch ev.Type {
	case pubsub.EventMessageCreated:
		var e MessageCreated
		err = ev.Open(&e)
		out = e
	case pubsub.EventMessageUpdated:
		var e MessageUpdated
		err = ev.Open(&e)
		out = e
	case pubsub.EventNotificationCreated:
		var e NotificationCreated
		err = ev.Open(&e)
		out = e
	case pubsub.EventChatDeleted:
		var e ChatDeleted
		err = ev.Open(&e)
		out = e
	default:
		return nil, fmt.Errorf("unknown event type: %s", ev.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", ev.Type, err)
	}
	if ev.Destination != "" && ev.Destination != out.Destination() {
		return nil, fmt.Errorf("event %s addressed to %s but belongs to %s", ev.Type, ev.Destination, out.Destination())
	}
	return out, nil
}

// EventFrame is the WebSocket frame carrying a live event to a client.
type EventFrame struct {
	Type        string    `json:"type"`
	Destination string    `json:"destination"`
	Data        Event     `json:"data"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEventFrame marshals a live event into a client frame.
func NewEventFrame(e Event, ts time.Time) ([]byte, error) {
	return json.Marshal(&EventFrame{
		Type:        e.EventType(),
		Destination: e.Destination(),
		Data:        e,
		Timestamp:   ts,
	})
}
