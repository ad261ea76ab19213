package pubsub

import (
	"fmt"
	"strings"
)

// Namespace partitions channels by what they carry: chat channels carry
// message events and user channels carry notifications.
type Namespace string

const (
	NamespaceChat Namespace = "chat"
	NamespaceUser Namespace = "user"
)

// Namespaces lists every namespace a relay has to stream.
var Namespaces = []Namespace{NamespaceChat, NamespaceUser}

// Channel names the channel of id within n, as "<namespace>:<id>".
func (n Namespace) Channel(id string) string {
	return string(n) + ":" + id
}

func (n Namespace) valid() bool {
	return n == NamespaceChat || n == NamespaceUser
}

// Event types carried on chat and user channels.
const (
	EventMessageCreated      = "message_created"
	EventMessageUpdated      = "message_updated"
	EventChatDeleted         = "chat_deleted"
	EventNotificationCreated = "notification_created"
)

func ChatChannel(chatID string) string { return NamespaceChat.Channel(chatID) }

func UserChannel(userID string) string { return NamespaceUser.Channel(userID) }

// ParseChannel splits a channel name into its namespace and id.
func ParseChannel(channel string) (Namespace, string, error) {
	prefix, id, found := strings.Cut(channel, ":")
	ns := Namespace(prefix)
	switch {
	case !found || id == "":
		return "", "", fmt.Errorf("pubsub: malformed channel %q", channel)
	case !ns.valid():
		return "", "", fmt.Errorf("pubsub: unknown namespace in %q", channel)
	}
	return ns, id, nil
}
