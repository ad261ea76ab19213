package hub

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/pkg/log"
)

var (
	ErrHubStopped         = errors.New("hub stopped")
	ErrClientNotFound     = errors.New("client not registered")
	ErrInvalidDestination = errors.New("invalid destination")
)

const deliveryBuffer = 4096

type commandKind int

const (
	cmdRegister commandKind = iota
	cmdUnregister
	cmdJoin
	cmdLeave
	cmdSubscriberCount
	cmdClientCount
)

type command struct {
	kind   commandKind
	client *Client
	dest   Destination
	reply  chan int
}

type delivery struct {
	dest      Destination
	data      []byte
	closeDest bool
}

// Hub owns the destination -> client mapping. Only the Run goroutine reads or
// writes the maps; every other goroutine talks to it through channels, so
// events published to one destination are delivered in publish order.
type Hub struct {
	clients       map[string]*Client                  // clientID -> client
	destinations  map[Destination]map[string]*Client  // destination -> clientID -> client
	subscriptions map[string]map[Destination]struct{} // clientID -> destinations
	commands      chan command
	deliveries    chan delivery
	done          chan struct{}
	config        config.WebSocketConfig
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		destinations:  make(map[Destination]map[string]*Client),
		subscriptions: make(map[string]map[Destination]struct{}),
		commands:      make(chan command),
		deliveries:    make(chan delivery, deliveryBuffer),
		done:          make(chan struct{}),
		config:        cfg,
	}
}

// Run processes commands and deliveries until ctx is cancelled. On exit every
// remaining client's send channel is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, c := range h.clients {
				h.removeClient(c)
			}
			return

		case cmd := <-h.commands:
			h.flush()
			cmd.reply <- h.apply(cmd)

		case d := <-h.deliveries:
			h.deliver(d)
		}
	}
}

// flush delivers everything already queued, so a command sees every publish
// that returned before it was issued.
func (h *Hub) flush() {
	for {
		select {
		case d := <-h.deliveries:
			h.deliver(d)
		default:
			return
		}
	}
}

func (h *Hub) apply(cmd command) int {
	c := cmd.client
	switch cmd.kind {
	case cmdRegister:
		h.clients[c.ID] = c
		h.subscriptions[c.ID] = make(map[Destination]struct{})
		l := log.L()
		l.Debug().Str(log.FieldConnectionID, c.ID).Msg("client registered")
		return 1

	case cmdUnregister:
		if _, ok := h.clients[c.ID]; !ok {
			return 0
		}
		h.removeClient(c)
		l := log.L()
		l.Debug().Str(log.FieldConnectionID, c.ID).Msg("client unregistered")
		return 1

	case cmdJoin:
		subs, ok := h.subscriptions[c.ID]
		if !ok {
			return -1
		}
		members, ok := h.destinations[cmd.dest]
		if !ok {
			members = make(map[string]*Client)
			h.destinations[cmd.dest] = members
		}
		members[c.ID] = c
		subs[cmd.dest] = struct{}{}
		return len(members)

	case cmdLeave:
		subs, ok := h.subscriptions[c.ID]
		if !ok {
			return 0
		}
		if _, ok := subs[cmd.dest]; !ok {
			return 0
		}
		delete(subs, cmd.dest)
		h.dropMember(cmd.dest, c.ID)
		return 1

	case cmdSubscriberCount:
		return len(h.destinations[cmd.dest])

	case cmdClientCount:
		return len(h.clients)
	}
	return 0
}

func (h *Hub) deliver(d delivery) {
	for _, c := range h.destinations[d.dest] {
		if err := c.enqueue(d.data); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldConnectionID, c.ID).Str(log.FieldDestination, string(d.dest)).Msg("dropping slow client")
			h.removeClient(c)
		}
	}

	if d.closeDest {
		for clientID := range h.destinations[d.dest] {
			delete(h.subscriptions[clientID], d.dest)
		}
		delete(h.destinations, d.dest)
	}
}

func (h *Hub) dropMember(dest Destination, clientID string) {
	if members, ok := h.destinations[dest]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.destinations, dest)
		}
	}
}

// removeClient detaches a client from every destination and closes its send
// channel. Must only run on the Run goroutine.
func (h *Hub) removeClient(c *Client) {
	for dest := range h.subscriptions[c.ID] {
		h.dropMember(dest, c.ID)
	}
	delete(h.subscriptions, c.ID)
	delete(h.clients, c.ID)
	c.close()
}

// do hands a command to the Run goroutine and waits for its result.
func (h *Hub) do(cmd command) (int, error) {
	cmd.reply = make(chan int, 1)
	select {
	case h.commands <- cmd:
	case <-h.done:
		return 0, ErrHubStopped
	}
	select {
	case r := <-cmd.reply:
		return r, nil
	case <-h.done:
		return 0, ErrHubStopped
	}
}

func (h *Hub) Register(client *Client) error {
	_, err := h.do(command{kind: cmdRegister, client: client})
	return err
}

// Unregister removes the client from all destinations. It returns once the
// removal has been applied.
func (h *Hub) Unregister(client *Client) {
	h.do(command{kind: cmdUnregister, client: client})
}

// Join subscribes the client to dest. Joining twice is a no-op.
func (h *Hub) Join(client *Client, dest Destination) error {
	if dest == "" {
		return ErrInvalidDestination
	}
	r, err := h.do(command{kind: cmdJoin, client: client, dest: dest})
	if err != nil {
		return err
	}
	if r < 0 {
		return ErrClientNotFound
	}
	l := log.L()
	l.Debug().Str(log.FieldConnectionID, client.ID).Str(log.FieldDestination, string(dest)).Msg("client joined destination")
	return nil
}

// Leave unsubscribes the client from dest and reports whether it was subscribed.
func (h *Hub) Leave(client *Client, dest Destination) bool {
	r, err := h.do(command{kind: cmdLeave, client: client, dest: dest})
	return err == nil && r == 1
}

// Publish enqueues data for every client subscribed to dest and returns
// without waiting for delivery.
func (h *Hub) Publish(dest Destination, data []byte) {
	h.enqueue(delivery{dest: dest, data: data})
}

// PublishAndClose delivers data to dest and then drops every subscription to it.
func (h *Hub) PublishAndClose(dest Destination, data []byte) {
	h.enqueue(delivery{dest: dest, data: data, closeDest: true})
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.deliveries <- d:
	case <-h.done:
	}
}

// SubscriberCount returns the number of clients subscribed to dest.
func (h *Hub) SubscriberCount(dest Destination) int {
	r, _ := h.do(command{kind: cmdSubscriberCount, dest: dest})
	return r
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	r, _ := h.do(command{kind: cmdClientCount})
	return r
}
