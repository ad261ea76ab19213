package hub

import (
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

// Destination names a live-delivery channel: "chat:<id>" or "user:<id>".
type Destination string

// ChatDestination returns the destination carrying a chat's message events.
func ChatDestination(chatID string) Destination {
	return Destination(pubsub.ChatChannel(chatID))
}

// UserDestination returns the destination carrying a user's notifications.
func UserDestination(userID string) Destination {
	return Destination(pubsub.UserChannel(userID))
}

// ParseDestination validates a destination name.
func ParseDestination(s string) (Destination, error) {
	if _, _, err := pubsub.ParseChannel(s); err != nil {
		return "", err
	}
	return Destination(s), nil
}

func (d Destination) String() string {
	return string(d)
}
