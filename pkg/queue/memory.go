package queue

import (
	"context"
	"sync"
)

// MemoryQueue 进程内队列，进程退出即丢失，适合单实例和测试
type MemoryQueue struct {
	ch       chan string
	done     chan struct{}
	closeOne sync.Once
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{ch: make(chan string, capacity), done: make(chan struct{})}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, taskID string) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- taskID:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case id := <-q.ch:
		return NewDelivery(id, nil, func(ctx context.Context) error {
			return q.Enqueue(ctx, id)
		}), nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of waiting ids.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

func (q *MemoryQueue) Close() error {
	q.closeOne.Do(func() { close(q.done) })
	return nil
}
