package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// MemoryBus is an in-process Bus for single instance deployments and tests.
// Each stream sees envelopes in publish order.
type MemoryBus struct {
	mu      sync.RWMutex
	streams map[Namespace]map[chan *Envelope]struct{}
	closed  bool
	done    chan struct{}
}

func NewMemoryBus() *MemoryBus {
	streams := make(map[Namespace]map[chan *Envelope]struct{}, len(Namespaces))
	for _, ns := range Namespaces {
		streams[ns] = make(map[chan *Envelope]struct{})
	}
	return &MemoryBus{streams: streams, done: make(chan struct{})}
}

func (m *MemoryBus) Publish(_ context.Context, env *Envelope) error {
	ns, _, err := destinationNamespace(env)
	if err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for ch := range m.streams[ns] {
		select {
		case ch <- env:
		default:
			log.Warn().Str("destination", env.Destination).Str("type", env.Type).Msg("memory bus stream full, envelope dropped")
		}
	}
	return nil
}

func (m *MemoryBus) Stream(ctx context.Context, ns Namespace) (<-chan *Envelope, error) {
	if !ns.valid() {
		return nil, fmt.Errorf("pubsub: unknown namespace %q", ns)
	}

	ch := make(chan *Envelope, streamBuffer)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.streams[ns][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-m.done:
		}
		// Publishers hold the read lock while sending, so once the stream is
		// unregistered nothing can send on ch.
		m.mu.Lock()
		delete(m.streams[ns], ch)
		m.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (m *MemoryBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
