package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process queue used in dev mode and in tests.
// Delayed messages become visible after their delay elapses.
type MemoryQueue struct {
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

// NewMemoryQueue constructs a memory queue with a bounded buffer.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryQueue{ch: make(chan Message, buffer)}
}

// Send makes the message immediately visible to receivers.
func (q *MemoryQueue) Send(ctx context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return context.Canceled
	}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendDelayed makes the message visible after the delay elapses.
func (q *MemoryQueue) SendDelayed(ctx context.Context, msg Message, delay time.Duration) error {
	if delay <= 0 {
		return q.Send(ctx, msg)
	}
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.closed {
			return
		}
		select {
		case q.ch <- msg:
		default:
		}
	})
	return nil
}

// Receive blocks until a message is visible or the context ends.
func (q *MemoryQueue) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Close stops accepting new messages.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

var _ Client = (*MemoryQueue)(nil)
