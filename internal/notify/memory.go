package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrClosed = errors.New("notify: broker closed")

// Memory is an in-process broker.
type Memory struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
	done   chan struct{}
	logger *slog.Logger
}

func NewMemory(logger *slog.Logger) *Memory {
	return &Memory{subs: make(map[chan Event]struct{}), done: make(chan struct{}), logger: logger}
}

func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Debug("notify.subscriber.slow", "topic", ev.Topic, "op", ev.Op)
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	ch := make(chan Event, subscriberBuffer)
	m.subs[ch] = struct{}{}
	go func() {
		select {
		case <-ctx.Done():
			m.remove(ch)
		case <-m.done:
		}
	}()
	return ch, nil
}

// remove closes ch unless Close already did.
func (m *Memory) remove(ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	for ch := range m.subs {
		delete(m.subs, ch)
		close(ch)
	}
	return nil
}
