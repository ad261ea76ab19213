package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrClosed is returned by a bus after Close.
var ErrClosed = errors.New("pubsub: closed")

// Envelope is one event on the bus. Destination is the channel it is
// addressed to and decides which stream carries it.
type Envelope struct {
	Type        string          `json:"type"`
	Destination string          `json:"destination"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Seal marshals payload into an envelope stamped with the current time.
func Seal(eventType, destination string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type:        eventType,
		Destination: destination,
		Payload:     raw,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// Open unmarshals the payload into v.
func (e *Envelope) Open(v any) error {
	return json.Unmarshal(e.Payload, v)
}

type Publisher interface {
	Publish(ctx context.Context, env *Envelope) error
}

// Streamer delivers every envelope of a namespace. The channel is closed
// when ctx ends or the bus closes. Delivery is best effort: a stream that
// falls streamBuffer envelopes behind loses the excess.
type Streamer interface {
	Stream(ctx context.Context, ns Namespace) (<-chan *Envelope, error)
}

type Bus interface {
	Publisher
	Streamer
	Close() error
}

const streamBuffer = 256

// destinationNamespace validates env and returns the namespace it belongs to.
func destinationNamespace(env *Envelope) (Namespace, string, error) {
	if env == nil {
		return "", "", errors.New("pubsub: nil envelope")
	}
	return ParseChannel(env.Destination)
}
