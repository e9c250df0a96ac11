package worker

import (
	"context"
	"fmt"
	"time"

	"VidFlow/internal/models"
	"VidFlow/pkg/logger"
	"VidFlow/pkg/metrics"
	"VidFlow/pkg/queue"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sweeper finds tasks nobody is working on: PENDING tasks whose enqueue was lost and
// PROCESSING tasks whose worker stopped heartbeating. They are enqueued again until
// their attempts run out, then failed.
type Sweeper struct {
	db          *gorm.DB
	q           queue.Queue
	staleAfter  time.Duration
	maxAttempts int
	batch       int
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewSweeper(db *gorm.DB, q queue.Queue, cfg Config, m *metrics.Metrics) *Sweeper {
	cfg = cfg.withDefaults()
	return &Sweeper{
		db:          db,
		q:           q,
		staleAfter:  cfg.StaleAfter,
		maxAttempts: cfg.MaxAttempts,
		batch:       100,
		metrics:     m,
		now:         time.Now,
	}
}

// Run implements scheduler.Job.
func (s *Sweeper) Run(ctx context.Context) {
	requeued, expired, err := s.Sweep(ctx)
	if err != nil {
		logger.Error("sweep stranded tasks", zap.Error(err))
		return
	}
	if requeued > 0 || expired > 0 {
		logger.Info("swept stranded tasks", zap.Int("requeued", requeued), zap.Int("expired", expired))
	}
}

// Sweep runs one pass and reports how many tasks were enqueued again and how many
// were failed for good.
func (s *Sweeper) Sweep(ctx context.Context) (requeued, expired int, err error) {
	cutoff := s.now().Add(-s.staleAfter)
	tasks, err := models.FindStrandedTasks(s.db.WithContext(ctx), cutoff, cutoff, s.batch)
	if err != nil {
		return 0, 0, err
	}

	for _, t := range tasks {
		if t.Status == models.TaskProcessing && t.Attempts >= s.maxAttempts {
			ok, err := models.FailTask(s.db, t.ID, fmt.Sprintf("abandoned after %d attempts", t.Attempts))
			if err != nil {
				logger.Error("expire task", zap.String("task", t.ID), zap.Error(err))
				continue
			}
			if ok {
				expired++
				if s.metrics != nil {
					s.metrics.TaskExpired()
				}
			}
			continue
		}

		if err := s.q.Enqueue(ctx, t.ID); err != nil {
			logger.Warn("requeue task", zap.String("task", t.ID), zap.Error(err))
			continue
		}
		if t.Status == models.TaskPending {
			if err := models.RequeueTask(s.db, t.ID); err != nil {
				logger.Warn("bump requeued task", zap.String("task", t.ID), zap.Error(err))
			}
		}
		requeued++
	}
	return requeued, expired, nil
}
