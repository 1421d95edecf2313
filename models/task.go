package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of an async task
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// PriceCheckTask represents an async price checking task. Workers mutate it
// while handlers read it, so reads go through Snapshot.
type PriceCheckTask struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Status      TaskStatus        `json:"status"`
	Progress    int               `json:"progress"` // 0-100
	Message     string            `json:"message"`
	Result      *PriceCheckResult `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`

	mu sync.RWMutex
}

// NewPriceCheckTask creates a new price check task
func NewPriceCheckTask(url string) *PriceCheckTask {
	return &PriceCheckTask{
		ID:        uuid.NewString(),
		URL:       url,
		Status:    TaskStatusQueued,
		Message:   "Task queued for processing",
		CreatedAt: time.Now(),
	}
}

// UpdateProgress updates the task progress
func (t *PriceCheckTask) UpdateProgress(progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Progress = progress
	t.Message = message
}

// Start marks the task as processing
func (t *PriceCheckTask) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskStatusProcessing
	t.Progress = 0
	t.Message = "Starting price check..."
	now := time.Now()
	t.StartedAt = &now
}

// Complete marks the task as completed with result
func (t *PriceCheckTask) Complete(result *PriceCheckResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskStatusCompleted
	t.Progress = 100
	t.Message = "Price check completed successfully"
	t.Result = result
	now := time.Now()
	t.CompletedAt = &now
}

// Fail marks the task as failed with error
func (t *PriceCheckTask) Fail(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskStatusFailed
	t.Progress = 0
	t.Message = "Price check failed"
	t.Error = reason
	now := time.Now()
	t.CompletedAt = &now
}

// IsCompleted returns true if the task is in a final state
func (t *PriceCheckTask) IsCompleted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// IsActive returns true if the task is still running
func (t *PriceCheckTask) IsActive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status == TaskStatusQueued || t.Status == TaskStatusProcessing
}

// Duration returns the duration of the task
func (t *PriceCheckTask) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.StartedAt == nil {
		return 0
	}

	endTime := time.Now()
	if t.CompletedAt != nil {
		endTime = *t.CompletedAt
	}

	return endTime.Sub(*t.StartedAt)
}

// Snapshot returns a copy that is safe to encode while workers keep running.
func (t *PriceCheckTask) Snapshot() *PriceCheckTask {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &PriceCheckTask{
		ID:          t.ID,
		URL:         t.URL,
		Status:      t.Status,
		Progress:    t.Progress,
		Message:     t.Message,
		Result:      t.Result,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}
