package handlers

import (
	"strings"

	"VidFlow/internal/listeners"
	"VidFlow/internal/models"
	"VidFlow/pkg/errors"
	"VidFlow/pkg/logger"
	"VidFlow/pkg/response"
	"VidFlow/pkg/sse"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

type createTaskRequest struct {
	Prompt  string `json:"prompt"`
	VoiceID string `json:"voiceId"`
}

// handleCreateTask 落库为 PENDING 后入队，立即返回 202
func (h *Handlers) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" || strings.TrimSpace(req.VoiceID) == "" {
		response.Fail(c, "Missing prompt or voiceId", nil)
		return
	}

	user := models.CurrentUser(c)
	task, err := models.CreateTask(h.db, user.ID, req.Prompt, strings.TrimSpace(req.VoiceID))
	if err != nil {
		h.fail(c, errors.Wrap(err, "create task"))
		return
	}
	if h.deps.Queue != nil {
		if err := h.deps.Queue.Enqueue(c.Request.Context(), task.ID); err != nil {
			// 任务已落库为 PENDING，由 sweeper 补投
			logger.Warn("enqueue task", zap.String("task", task.ID), zap.Error(err))
		}
	}
	response.Accepted(c, "task accepted", gin.H{"taskId": task.ID})
}

func (h *Handlers) handleListTasks(c *gin.Context) {
	user := models.CurrentUser(c)
	tasks, err := models.ListUserTasks(h.db, user.ID, cast.ToInt(c.Query("limit")))
	if err != nil {
		h.fail(c, errors.Wrap(err, "list tasks"))
		return
	}
	response.Success(c, "list tasks", tasks)
}

func (h *Handlers) handleSearchTasks(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.Fail(c, "missing q", nil)
		return
	}
	user := models.CurrentUser(c)
	limit := cast.ToInt(c.Query("limit"))

	if h.deps.Index == nil {
		tasks, err := models.SearchUserTasks(h.db, user.ID, q, limit)
		if err != nil {
			h.fail(c, errors.Wrap(err, "search tasks"))
			return
		}
		response.Success(c, "search tasks", tasks)
		return
	}

	hits, err := h.deps.Index.Search(c.Request.Context(), user.ID, q, limit)
	if err != nil {
		h.fail(c, errors.Wrap(err, "search tasks"))
		return
	}
	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
	}
	tasks, err := models.GetUserTasksByIDs(h.db, user.ID, ids)
	if err != nil {
		h.fail(c, errors.Wrap(err, "load tasks"))
		return
	}
	response.Success(c, "search tasks", tasks)
}

func (h *Handlers) handleGetTask(c *gin.Context) {
	user := models.CurrentUser(c)
	task, err := models.GetUserTask(h.db, user.ID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, "get task", task)
}

// handleTaskEvents streams status events of one task. The current status goes first so
// a late subscriber never waits for a transition that already happened.
func (h *Handlers) handleTaskEvents(c *gin.Context) {
	user := models.CurrentUser(c)
	task, err := models.GetUserTask(h.db, user.ID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.deps.Hub == nil {
		h.fail(c, errors.New("event stream is not enabled"))
		return
	}

	initial := models.TaskEvent{
		TaskID:   task.ID,
		Status:   task.Status,
		Error:    task.Error,
		Attempts: task.Attempts,
		At:       task.UpdatedAt,
	}
	if task.AudioURL != nil {
		initial.AudioURL = *task.AudioURL
	}
	h.deps.Hub.Serve(c, task.ID, &sse.Event{Name: listeners.StatusEvent, Data: initial}, listeners.IsFinal)
}
