package worker

import (
	"context"
	stderrors "errors"
	"time"

	"VidFlow/pkg/logger"
	"VidFlow/pkg/queue"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TaskProcessor is what the pool hands each delivery to.
type TaskProcessor interface {
	Process(ctx context.Context, taskID string) error
}

// Pool runs a fixed number of workers over a queue.
type Pool struct {
	q           queue.Queue
	proc        TaskProcessor
	concurrency int
	// RetryDelay 出错后（出队失败或 nack）等待多久再取下一条
	RetryDelay time.Duration
}

func NewPool(q queue.Queue, proc TaskProcessor, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Pool{q: q, proc: proc, concurrency: concurrency, RetryDelay: time.Second}
}

// Run blocks until ctx is done or the queue is closed.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		id := i
		g.Go(func() error { return p.loop(ctx, id) })
	}
	return g.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) error {
	log := logger.Lg.With(zap.Int("worker", id))
	log.Info("worker started")
	defer log.Info("worker stopped")

	for {
		d, err := p.q.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, queue.ErrClosed) {
				return nil
			}
			log.Warn("dequeue failed", zap.Error(err))
			if !p.sleep(ctx) {
				return nil
			}
			continue
		}

		if err := p.proc.Process(ctx, d.TaskID); err != nil {
			log.Warn("process failed, requeueing", zap.String("task", d.TaskID), zap.Error(err))
			// ctx 可能已取消，ack/nack 用独立的超时
			nctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if nerr := d.Nack(nctx); nerr != nil {
				log.Error("nack failed", zap.String("task", d.TaskID), zap.Error(nerr))
			}
			cancel()
			if !p.sleep(ctx) {
				return nil
			}
			continue
		}

		actx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if aerr := d.Ack(actx); aerr != nil {
			log.Error("ack failed", zap.String("task", d.TaskID), zap.Error(aerr))
		}
		cancel()
	}
}

func (p *Pool) sleep(ctx context.Context) bool {
	if p.RetryDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(p.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
