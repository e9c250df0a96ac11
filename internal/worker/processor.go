// Package worker turns queued task ids into finished narration audio.
package worker

import (
	"context"
	"fmt"
	"time"

	"VidFlow/internal/models"
	"VidFlow/pkg/chunker"
	"VidFlow/pkg/errors"
	"VidFlow/pkg/logger"
	"VidFlow/pkg/media"
	"VidFlow/pkg/metrics"
	stores "VidFlow/pkg/storage"
	"VidFlow/pkg/tts"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Config struct {
	ChunkWords  int
	StaleAfter  time.Duration
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.ChunkWords <= 0 {
		c.ChunkWords = chunker.DefaultMaxWords
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 15 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

// Processor runs one task end to end: claim, chunk, synthesize, merge, publish.
type Processor struct {
	db        *gorm.DB
	synth     tts.Synthesizer
	merger    media.Merger
	artifacts *stores.Artifacts
	cfg       Config
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewProcessor wires a processor. m may be nil.
func NewProcessor(db *gorm.DB, synth tts.Synthesizer, merger media.Merger, artifacts *stores.Artifacts, cfg Config, m *metrics.Metrics) *Processor {
	return &Processor{
		db:        db,
		synth:     synth,
		merger:    merger,
		artifacts: artifacts,
		cfg:       cfg.withDefaults(),
		metrics:   m,
		now:       time.Now,
	}
}

// Process handles one delivery of taskID. It returns an error when the task could not
// be claimed because of an infrastructure failure, or when ctx was cancelled mid-task;
// the delivery should then be retried. Any other failure after the claim ends in FAILED
// and returns nil.
func (p *Processor) Process(ctx context.Context, taskID string) (err error) {
	task, err := models.GetTask(p.db.WithContext(ctx), taskID)
	if err != nil {
		return errors.Wrap(err, "load task").WithContext("task", taskID)
	}
	if task == nil {
		logger.Warn("task not found, dropping delivery", zap.String("task", taskID))
		return nil
	}
	if task.Status.Terminal() {
		logger.Debug("task already finished", zap.String("task", taskID), zap.String("status", string(task.Status)))
		return nil
	}

	claimed, err := models.ClaimTask(p.db.WithContext(ctx), taskID, p.now().Add(-p.cfg.StaleAfter), p.cfg.MaxAttempts)
	if err != nil {
		return errors.Wrap(err, "claim task").WithContext("task", taskID)
	}
	if !claimed {
		logger.Debug("task claimed elsewhere", zap.String("task", taskID))
		return nil
	}

	start := p.now()
	chunks := chunker.Split(task.Prompt, p.cfg.ChunkWords)
	if p.metrics != nil {
		p.metrics.TaskStarted(len(chunks))
	}
	logger.Info("task started",
		zap.String("task", taskID),
		zap.Int("chunks", len(chunks)),
		zap.Int("attempt", task.Attempts+1))

	defer func() {
		if r := recover(); r != nil {
			p.fail(taskID, start, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()

	url, runErr := p.run(ctx, task, chunks)
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// 任务保持 PROCESSING，过期后由 sweeper 重新投递
			logger.Warn("task interrupted", zap.String("task", taskID), zap.Error(runErr))
			return errors.Wrap(ctxErr, "task interrupted").WithContext("task", taskID)
		}
		p.fail(taskID, start, runErr)
		return nil
	}

	// 终态写入不使用 ctx，关停时也要落库
	ok, dbErr := models.CompleteTask(p.db, taskID, url)
	switch {
	case dbErr != nil:
		logger.Error("complete task", zap.String("task", taskID), zap.Error(dbErr))
		p.finished(string(models.TaskFailed), start)
	case !ok:
		logger.Warn("task left PROCESSING before completion", zap.String("task", taskID))
		p.finished(string(models.TaskFailed), start)
	default:
		logger.Info("task completed", zap.String("task", taskID), zap.String("url", url),
			zap.Duration("took", p.now().Sub(start)))
		p.finished(string(models.TaskCompleted), start)
	}
	return nil
}

func (p *Processor) run(ctx context.Context, task *models.Task, chunks []string) (string, error) {
	speeches := make([]*tts.Speech, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(err, "cancelled")
		}
		begin := p.now()
		sp, err := p.synth.Synthesize(ctx, task.VoiceID, chunk)
		if p.metrics != nil {
			p.metrics.ObserveExternal("fish_audio", p.now().Sub(begin), err)
		}
		if err != nil {
			return "", errors.Wrapf(err, "synthesize chunk %d/%d", i+1, len(chunks))
		}
		speeches = append(speeches, sp)
		if err := models.TouchTask(p.db, task.ID); err != nil {
			logger.Warn("heartbeat failed", zap.String("task", task.ID), zap.Error(err))
		}
	}

	switch len(speeches) {
	case 0:
		return "", errors.WithCode(errors.CodeProcess, "no audio generated")
	case 1:
		return speeches[0].URL, nil
	}

	inputs := make([]string, len(speeches))
	for i, sp := range speeches {
		inputs[i] = sp.Path
	}
	name := fmt.Sprintf("merged-%d-%s.mp3", p.now().UnixMilli(), task.ID)
	begin := p.now()
	err := p.merger.Concat(ctx, inputs, p.artifacts.Path(name))
	if p.metrics != nil {
		p.metrics.ObserveExternal("ffmpeg", p.now().Sub(begin), err)
	}
	if err != nil {
		return "", errors.Wrap(err, "merge audio")
	}
	art, err := p.artifacts.Publish(ctx, name)
	if err != nil {
		return "", errors.Wrap(err, "publish merged audio")
	}
	return art.URL, nil
}

func (p *Processor) fail(taskID string, start time.Time, cause error) {
	logger.Error("task failed", zap.String("task", taskID), zap.Error(cause))
	if _, err := models.FailTask(p.db, taskID, cause.Error()); err != nil {
		logger.Error("mark task failed", zap.String("task", taskID), zap.Error(err))
	}
	p.finished(string(models.TaskFailed), start)
}

func (p *Processor) finished(status string, start time.Time) {
	if p.metrics != nil {
		p.metrics.TaskFinished(status, p.now().Sub(start))
	}
}
