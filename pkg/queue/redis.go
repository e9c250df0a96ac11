package queue

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPollTimeout = 2 * time.Second

// RedisQueue 使用 list 实现的可靠队列：生产者 LPUSH，消费者 BLMOVE 到 processing 列表，
// Ack 时从 processing 中 LREM，Nack 时移回待处理列表
type RedisQueue struct {
	client     *redis.Client
	key        string
	processing string
}

func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{client: client, key: name, processing: name + ":processing"}
}

func (q *RedisQueue) Enqueue(ctx context.Context, taskID string) error {
	return q.client.LPush(ctx, q.key, taskID).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", redisPollTimeout).Result()
		if stderrors.Is(err, redis.Nil) {
			continue
		}
		if stderrors.Is(err, redis.ErrClosed) {
			return nil, ErrClosed
		}
		if err != nil {
			return nil, err
		}
		return NewDelivery(id,
			func(ctx context.Context) error {
				return q.client.LRem(ctx, q.processing, 1, id).Err()
			},
			func(ctx context.Context) error {
				_, err := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
					p.LRem(ctx, q.processing, 1, id)
					p.RPush(ctx, q.key, id)
					return nil
				})
				return err
			}), nil
	}
}

// Recover moves ids left in the processing list by a crashed consumer back to the
// queue. Call it before any consumer of this queue starts.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.key, "LEFT", "RIGHT").Err()
		if stderrors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Close is a no-op; the redis client is shared and closed by its owner.
func (q *RedisQueue) Close() error {
	return nil
}
