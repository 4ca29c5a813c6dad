package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend is an in-process broker used as a test double. Open never
// returns it: nothing outside the publishing process could consume it.
// Failed messages are requeued at the tail.
type MemoryBackend struct {
	mu     sync.Mutex
	queues map[string]chan Message
	size   int
	closed bool
}

func NewMemoryBackend(size int) *MemoryBackend {
	if size <= 0 {
		size = 1
	}
	return &MemoryBackend{queues: make(map[string]chan Message), size: size}
}

func (m *MemoryBackend) queue(name string) (chan Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("mq: backend closed")
	}
	q, ok := m.queues[name]
	if !ok {
		q = make(chan Message, m.size)
		m.queues[name] = q
	}
	return q, nil
}

func (m *MemoryBackend) Publish(ctx context.Context, queue string, data []byte, attrs map[string]string) (string, error) {
	q, err := m.queue(queue)
	if err != nil {
		return "", err
	}
	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	select {
	case q <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *MemoryBackend) Subscribe(ctx context.Context, queue string, handler Handler) error {
	q, err := m.queue(queue)
	if err != nil {
		return err
	}
	// Failed messages that did not fit back into a full queue.
	var backlog []Message
	for {
		for len(backlog) > 0 {
			select {
			case q <- backlog[0]:
				backlog = backlog[1:]
				continue
			default:
			}
			break
		}

		var msg Message
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg = <-q:
		}

		if err := handler(ctx, msg); err != nil {
			select {
			case q <- msg:
			default:
				backlog = append(backlog, msg)
			}
		}
	}
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
