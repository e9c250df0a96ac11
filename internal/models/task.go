package models

import (
	stderrors "errors"
	"strings"
	"time"

	"VidFlow/pkg/errors"
	"VidFlow/pkg/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskProcessing TaskStatus = "PROCESSING"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task 长文本语音合成任务，状态只通过条件更新推进
type Task struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	UserID    uint       `json:"userId" gorm:"index"`
	Prompt    string     `json:"prompt" gorm:"type:text"`
	VoiceID   string     `json:"voiceId" gorm:"size:128"`
	Status    TaskStatus `json:"status" gorm:"size:16;index"`
	AudioURL  *string    `json:"audioUrl"`
	Error     string     `json:"error,omitempty" gorm:"type:text"`
	Attempts  int        `json:"attempts"`
	ClaimedAt *time.Time `json:"claimedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TaskEvent is emitted on SigTaskStatus.
type TaskEvent struct {
	TaskID   string     `json:"taskId"`
	Status   TaskStatus `json:"status"`
	AudioURL string     `json:"audioUrl,omitempty"`
	Error    string     `json:"error,omitempty"`
	Attempts int        `json:"attempts,omitempty"`
	At       time.Time  `json:"at"`
}

func emitStatus(ev TaskEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	util.Sig().Emit(SigTaskStatus, &ev)
}

func CreateTask(db *gorm.DB, userID uint, prompt, voiceID string) (*Task, error) {
	if prompt == "" || voiceID == "" {
		return nil, errors.Precondition("missing prompt or voiceId")
	}
	t := &Task{
		ID:      uuid.NewString(),
		UserID:  userID,
		Prompt:  prompt,
		VoiceID: voiceID,
		Status:  TaskPending,
	}
	if err := db.Create(t).Error; err != nil {
		return nil, err
	}
	util.Sig().Emit(SigTaskCreate, t)
	return t, nil
}

// GetTask returns nil, nil for an unknown id.
func GetTask(db *gorm.DB, id string) (*Task, error) {
	var t Task
	if err := db.Where("id = ?", id).First(&t).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func GetUserTask(db *gorm.DB, userID uint, id string) (*Task, error) {
	var t Task
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithCode(errors.CodeNotFound, "task not found")
		}
		return nil, err
	}
	return &t, nil
}

// ListUserTasks returns the user's tasks, newest first.
func ListUserTasks(db *gorm.DB, userID uint, limit int) ([]Task, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var tasks []Task
	err := db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&tasks).Error
	return tasks, err
}

// ClaimTask moves a task to PROCESSING for one worker. A PENDING task is claimable, as
// is a PROCESSING task whose claim is older than staleBefore (its worker died). Claims
// stop once attempts reach maxAttempts. Returns false when nothing was claimed.
func ClaimTask(db *gorm.DB, id string, staleBefore time.Time, maxAttempts int) (bool, error) {
	now := time.Now()
	q := db.Model(&Task{}).
		Where("id = ?", id).
		Where(db.Where("status = ?", TaskPending).
			Or("status = ? AND claimed_at < ?", TaskProcessing, staleBefore))
	if maxAttempts > 0 {
		q = q.Where("attempts < ?", maxAttempts)
	}
	res := q.Updates(map[string]any{
		"status":     TaskProcessing,
		"attempts":   gorm.Expr("attempts + 1"),
		"claimed_at": now,
	})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	emitStatus(TaskEvent{TaskID: id, Status: TaskProcessing, At: now})
	return true, nil
}

// TouchTask refreshes the claim of a PROCESSING task so it is not considered stale.
func TouchTask(db *gorm.DB, id string) error {
	return db.Model(&Task{}).
		Where("id = ? AND status = ?", id, TaskProcessing).
		Update("claimed_at", time.Now()).Error
}

// CompleteTask applies PROCESSING → COMPLETED. Replays are no-ops returning false.
func CompleteTask(db *gorm.DB, id, audioURL string) (bool, error) {
	res := db.Model(&Task{}).
		Where("id = ? AND status = ?", id, TaskProcessing).
		Updates(map[string]any{"status": TaskCompleted, "audio_url": audioURL, "error": ""})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	emitStatus(TaskEvent{TaskID: id, Status: TaskCompleted, AudioURL: audioURL})
	return true, nil
}

// FailTask applies {PENDING, PROCESSING} → FAILED. Terminal tasks are never touched.
func FailTask(db *gorm.DB, id, message string) (bool, error) {
	res := db.Model(&Task{}).
		Where("id = ? AND status IN ?", id, []TaskStatus{TaskPending, TaskProcessing}).
		Updates(map[string]any{"status": TaskFailed, "error": message})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	emitStatus(TaskEvent{TaskID: id, Status: TaskFailed, Error: message})
	return true, nil
}

// FindStrandedTasks lists PENDING tasks last updated before pendingBefore and
// PROCESSING tasks claimed before claimedBefore, oldest first.
func FindStrandedTasks(db *gorm.DB, pendingBefore, claimedBefore time.Time, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 100
	}
	var tasks []Task
	err := db.Where("status = ? AND updated_at < ?", TaskPending, pendingBefore).
		Or("status = ? AND claimed_at < ?", TaskProcessing, claimedBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// RequeueTask bumps updated_at of a PENDING task so a sweep does not pick it up again
// before the next stale window.
func RequeueTask(db *gorm.DB, id string) error {
	return db.Model(&Task{}).
		Where("id = ? AND status = ?", id, TaskPending).
		Update("updated_at", time.Now()).Error
}

// SearchUserTasks is the database fallback for task search: a case-insensitive
// substring match on the prompt, newest first.
func SearchUserTasks(db *gorm.DB, userID uint, q string, limit int) ([]Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var tasks []Task
	err := db.Where("user_id = ? AND LOWER(prompt) LIKE ?", userID, "%"+strings.ToLower(q)+"%").
		Order("created_at DESC").Limit(limit).Find(&tasks).Error
	return tasks, err
}

// GetUserTasksByIDs loads the user's tasks among ids, in the order of ids. Unknown or
// foreign ids are skipped.
func GetUserTasksByIDs(db *gorm.DB, userID uint, ids []string) ([]Task, error) {
	if len(ids) == 0 {
		return []Task{}, nil
	}
	var found []Task
	if err := db.Where("user_id = ? AND id IN ?", userID, ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]Task, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	tasks := make([]Task, 0, len(found))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}
