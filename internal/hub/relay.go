package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

// EventPublisher puts domain events on the bus. Every instance's Relay picks
// them up, so a client connected anywhere receives them.
type EventPublisher struct {
	bus pubsub.Publisher
}

func NewEventPublisher(bus pubsub.Publisher) *EventPublisher {
	return &EventPublisher{bus: bus}
}

// Publish encodes e and publishes it on its destination's channel.
func (p *EventPublisher) Publish(ctx context.Context, e domain.Event) error {
	ev, err := domain.EncodeEvent(e)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", e.EventType(), err)
	}
	if err := p.bus.Publish(ctx, ev); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.EventType(), err)
	}
	return nil
}

// Relay moves events from the bus into the local hub.
type Relay struct {
	bus pubsub.Streamer
	hub *Hub
}

func NewRelay(bus pubsub.Streamer, h *Hub) *Relay {
	return &Relay{bus: bus, hub: h}
}

// Run streams both destination namespaces and dispatches until ctx is
// cancelled. A stream ending before that is an error.
func (r *Relay) Run(ctx context.Context) error {
	chatEvents, err := r.bus.Stream(ctx, pubsub.NamespaceChat)
	if err != nil {
		return fmt.Errorf("failed to stream chat events: %w", err)
	}
	userEvents, err := r.bus.Stream(ctx, pubsub.NamespaceUser)
	if err != nil {
		return fmt.Errorf("failed to stream user events: %w", err)
	}

	l := log.L()
	l.Info().Msg("event relay started")

	for chatEvents != nil || userEvents != nil {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-chatEvents:
			if !ok {
				chatEvents = nil
				continue
			}
			r.Dispatch(ev)
		case ev, ok := <-userEvents:
			if !ok {
				userEvents = nil
				continue
			}
			r.Dispatch(ev)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return errors.New("event streams closed")
}

// Dispatch resolves a bus event into its typed form and fans it out. Malformed
// events are logged and dropped.
func (r *Relay) Dispatch(ev *pubsub.Envelope) {
	l := log.L()

	e, err := domain.DecodeEvent(ev)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldEventType, ev.Type).Msg("dropping undecodable event")
		return
	}

	frame, err := domain.NewEventFrame(e, ev.Timestamp)
	if err != nil {
		l.Error().Err(err).Str(log.FieldEventType, ev.Type).Msg("failed to build event frame")
		return
	}

	dest := Destination(e.Destination())
	if _, ok := e.(domain.ChatDeleted); ok {
		r.hub.PublishAndClose(dest, frame)
		return
	}
	r.hub.Publish(dest, frame)
}
