package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueFIFOAndAck(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "a"))
	require.NoError(t, q.Enqueue(ctx, "b"))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", d.TaskID)
	require.NoError(t, d.Ack(ctx))
	assert.Equal(t, 1, q.Len())
}

func TestMemoryQueueNackRedelivers(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "a"))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Nack(ctx))

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", d.TaskID)
}

func TestMemoryQueueDequeueHonoursContextAndClose(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, q.Close())
	_, err = q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, q.Enqueue(context.Background(), "x"), ErrClosed)
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "kafka"}, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Driver: "redis"}, nil)
	assert.Error(t, err)
}

func TestNATSQueue(t *testing.T) {
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, JetStream: true, StoreDir: t.TempDir()})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	defer ns.Shutdown()

	q, err := NewNATSQueue(ns.ClientURL(), "test_tasks")
	require.NoError(t, err)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, q.Enqueue(ctx, "task-1"))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "task-1", d.TaskID)
	require.NoError(t, d.Nack(ctx))

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "task-1", d.TaskID)
	require.NoError(t, d.Ack(ctx))
}

func TestRedisQueue(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	name := "vidflow_test_" + time.Now().Format("150405.000")
	defer rdb.Del(ctx, name, name+":processing")

	q := NewRedisQueue(rdb, name)
	require.NoError(t, q.Enqueue(ctx, "a"))
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", d.TaskID)

	// 模拟消费者崩溃：未 Ack 的 id 留在 processing 中
	n, err := NewRedisQueue(rdb, name).Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", d.TaskID)
	require.NoError(t, d.Ack(ctx))
	assert.Zero(t, rdb.LLen(ctx, name+":processing").Val())
}
