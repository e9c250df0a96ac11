package listeners

import (
	"context"
	"time"

	"VidFlow/internal/models"
	"VidFlow/pkg/logger"
	"VidFlow/pkg/metrics"
	"VidFlow/pkg/search"
	"VidFlow/pkg/sse"
	"VidFlow/pkg/util"

	"go.uber.org/zap"
)

// StatusEvent 推送给 SSE 订阅者的事件名
const StatusEvent = "status"

// TaskListeners fans task signals out to SSE subscribers, the search index and metrics.
// Any of the three may be nil.
type TaskListeners struct {
	Hub     *sse.Hub
	Index   *search.TaskIndex
	Metrics *metrics.Metrics
}

// Init connects the listeners and returns a func that disconnects them.
func (l *TaskListeners) Init() func() {
	createID := util.Sig().Connect(models.SigTaskCreate, func(sender any, params ...any) {
		l.onCreate(sender.(*models.Task))
	})
	statusID := util.Sig().Connect(models.SigTaskStatus, func(sender any, params ...any) {
		l.onStatus(sender.(*models.TaskEvent))
	})
	return func() {
		util.Sig().Disconnect(models.SigTaskCreate, createID)
		util.Sig().Disconnect(models.SigTaskStatus, statusID)
	}
}

func (l *TaskListeners) onCreate(task *models.Task) {
	if l.Metrics != nil {
		l.Metrics.TaskSubmitted()
	}
	if l.Index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := l.Index.Index(ctx, search.TaskDoc{
		ID:        task.ID,
		UserID:    task.UserID,
		VoiceID:   task.VoiceID,
		Status:    string(task.Status),
		Prompt:    task.Prompt,
		CreatedAt: task.CreatedAt,
	})
	if err != nil {
		logger.Warn("index task", zap.String("task", task.ID), zap.Error(err))
	}
}

func (l *TaskListeners) onStatus(ev *models.TaskEvent) {
	if l.Hub != nil {
		l.Hub.Publish(ev.TaskID, sse.Event{Name: StatusEvent, Data: *ev})
	}
	if l.Index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Index.UpdateStatus(ctx, ev.TaskID, string(ev.Status)); err != nil {
		logger.Warn("reindex task status", zap.String("task", ev.TaskID), zap.Error(err))
	}
}

// IsFinal reports whether ev ends a task's event stream.
func IsFinal(ev sse.Event) bool {
	switch d := ev.Data.(type) {
	case models.TaskEvent:
		return d.Status.Terminal()
	case *models.TaskEvent:
		return d.Status.Terminal()
	}
	return false
}
