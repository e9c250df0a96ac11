package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const natsFetchWait = 2 * time.Second

// NATSQueue JetStream 工作队列：stream 使用 WorkQueuePolicy，消息 Ack 后即删除
type NATSQueue struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	sub     *nats.Subscription
	subject string
}

func NewNATSQueue(url, name string) (*NATSQueue, error) {
	conn, err := nats.Connect(url, nats.Name("vidflow-worker"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	stream := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(name))
	subject := "vidflow.tasks." + name
	if _, err := js.StreamInfo(stream); stderrors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{subject},
			Retention: nats.WorkQueuePolicy,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create stream %s: %w", stream, err)
		}
	} else if err != nil {
		conn.Close()
		return nil, fmt.Errorf("lookup stream %s: %w", stream, err)
	}

	sub, err := js.PullSubscribe(subject, stream+"_workers", nats.ManualAck(), nats.AckWait(30*time.Minute))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return &NATSQueue{conn: conn, js: js, sub: sub, subject: subject}, nil
}

func (q *NATSQueue) Enqueue(_ context.Context, taskID string) error {
	_, err := q.js.Publish(q.subject, []byte(taskID))
	return err
}

func (q *NATSQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgs, err := q.sub.Fetch(1, nats.MaxWait(natsFetchWait))
		if stderrors.Is(err, nats.ErrTimeout) {
			continue
		}
		if stderrors.Is(err, nats.ErrConnectionClosed) || stderrors.Is(err, nats.ErrBadSubscription) {
			return nil, ErrClosed
		}
		if err != nil {
			return nil, err
		}
		if len(msgs) == 0 {
			continue
		}
		msg := msgs[0]
		return NewDelivery(string(msg.Data),
			func(context.Context) error { return msg.Ack() },
			func(context.Context) error { return msg.Nak() }), nil
	}
}

func (q *NATSQueue) Close() error {
	if err := q.conn.Drain(); err != nil {
		q.conn.Close()
		return err
	}
	return nil
}
