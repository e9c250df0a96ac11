// Package queue carries task ids from the API to the worker pool with at-least-once
// delivery. A delivery that is neither acked nor nacked is redelivered later.
package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

var ErrClosed = stderrors.New("queue closed")

type Queue interface {
	Enqueue(ctx context.Context, taskID string) error
	// Dequeue blocks until a task id is available, ctx is done or the queue is closed.
	Dequeue(ctx context.Context) (*Delivery, error)
	Close() error
}

// Delivery is one received task id. Ack removes it for good; Nack hands it back for
// redelivery.
type Delivery struct {
	TaskID string
	ack    func(ctx context.Context) error
	nack   func(ctx context.Context) error
}

func NewDelivery(taskID string, ack, nack func(ctx context.Context) error) *Delivery {
	return &Delivery{TaskID: taskID, ack: ack, nack: nack}
}

func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

func (d *Delivery) Nack(ctx context.Context) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(ctx)
}

type Config struct {
	Driver   string // memory | redis | nats
	Name     string
	NATSURL  string
	Capacity int
}

// New builds the queue selected by cfg.Driver. rdb is only used by the redis driver.
func New(ctx context.Context, cfg Config, rdb *redis.Client) (Queue, error) {
	if cfg.Name == "" {
		cfg.Name = "vidflow_tts_tasks"
	}
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemoryQueue(cfg.Capacity), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis queue requires a redis client")
		}
		q := NewRedisQueue(rdb, cfg.Name)
		if _, err := q.Recover(ctx); err != nil {
			return nil, err
		}
		return q, nil
	case "nats":
		return NewNATSQueue(cfg.NATSURL, cfg.Name)
	default:
		return nil, fmt.Errorf("unsupported queue driver: %s", cfg.Driver)
	}
}
