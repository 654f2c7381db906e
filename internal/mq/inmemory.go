package mq

import (
	"context"
	"sync"
)

// InMemoryMQ keeps a bounded channel per topic. Publishing to a full topic
// fails instead of blocking.
type InMemoryMQ struct {
	maxSize   int
	topics    sync.Map
	closeCh   chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

func NewInMemoryMQ(maxSize int) (*InMemoryMQ, error) {
	return &InMemoryMQ{
		maxSize: maxSize,
		closeCh: make(chan struct{}),
	}, nil
}

func (q *InMemoryMQ) topic(name string) chan []byte {
	value, _ := q.topics.LoadOrStore(name, make(chan []byte, q.maxSize))
	return value.(chan []byte)
}

func (q *InMemoryMQ) Publish(ctx context.Context, topic string, message []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case <-q.closeCh:
		return ErrQueueClosed
	default:
	}

	ch := q.topic(topic)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- message:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *InMemoryMQ) Receive(ctx context.Context, topic string) ([]byte, error) {
	ch := q.topic(topic)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closeCh:
		return nil, ErrQueueClosed
	case data, ok := <-ch:
		if !ok {
			return nil, ErrTopicClosed
		}
		return data, nil
	}
}

func (q *InMemoryMQ) CloseTopic(topic string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	value, ok := q.topics.LoadAndDelete(topic)
	if !ok {
		return ErrTopicNotExists
	}

	// pending messages are dropped; blocked receivers see ErrTopicClosed
	close(value.(chan []byte))
	return nil
}

func (q *InMemoryMQ) Close() error {
	q.closeOnce.Do(func() { close(q.closeCh) })
	return nil
}
