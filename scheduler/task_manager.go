package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"fairval/apperrors"
	"fairval/models"
)

// TaskManagerConfig sizes the async worker pool.
type TaskManagerConfig struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	RetainFor   time.Duration // finished tasks older than this are dropped
}

// TaskStats is a point-in-time view of the pool.
type TaskStats struct {
	TotalTasks    int            `json:"total_tasks"`
	ActiveTasks   int            `json:"active_tasks"` // queued or processing
	ActiveWorkers int            `json:"active_workers"`
	MaxWorkers    int            `json:"max_workers"`
	QueueSize     int            `json:"queue_size"`
	QueueCapacity int            `json:"queue_capacity"`
	TasksByStatus map[string]int `json:"tasks_by_status"`
}

// TaskManager manages async price checking tasks
type TaskManager struct {
	tasks     map[string]*models.PriceCheckTask
	taskQueue chan *models.PriceCheckTask
	checker   ProductPriceChecker
	cfg       TaskManagerConfig
	mutex     sync.RWMutex

	active   atomic.Int32
	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	stopped  bool // guarded by mutex
	wg       sync.WaitGroup
}

// NewTaskManager creates a task manager and starts its workers.
func NewTaskManager(checker ProductPriceChecker, cfg TaskManagerConfig) *TaskManager {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}
	if cfg.RetainFor <= 0 {
		cfg.RetainFor = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	tm := &TaskManager{
		tasks:     make(map[string]*models.PriceCheckTask),
		taskQueue: make(chan *models.PriceCheckTask, cfg.QueueSize),
		checker:   checker,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		stopChan:  make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		tm.wg.Add(1)
		go tm.worker()
	}
	go tm.cleanupLoop()

	log.Printf("🚀 Task manager started with %d workers", cfg.Workers)
	return tm
}

// SubmitTask queues a price check for url. The returned task is already
// failed when the queue is full or the manager is stopped.
func (tm *TaskManager) SubmitTask(url string) *models.PriceCheckTask {
	task := models.NewPriceCheckTask(url)

	// Enqueue under the lock Stop takes before draining, so no task is
	// queued after the drain.
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	tm.tasks[task.ID] = task

	if tm.stopped {
		task.Fail("Task manager is shutting down")
		return task.Snapshot()
	}

	select {
	case tm.taskQueue <- task:
		log.Printf("📝 Task %s submitted for %s", task.ID, url)
	default:
		task.Fail("Task queue is full")
		log.Printf("❌ Failed to submit task %s - queue full", task.ID)
	}

	return task.Snapshot()
}

// GetTask returns a snapshot of a task by ID
func (tm *TaskManager) GetTask(taskID string) (*models.PriceCheckTask, bool) {
	tm.mutex.RLock()
	task, exists := tm.tasks[taskID]
	tm.mutex.RUnlock()

	if !exists {
		return nil, false
	}
	return task.Snapshot(), true
}

// CleanupOldTasks removes finished tasks that completed before maxAge ago.
func (tm *TaskManager) CleanupOldTasks(maxAge time.Duration) int {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for taskID, task := range tm.tasks {
		if !task.IsCompleted() {
			continue
		}
		if snap := task.Snapshot(); snap.CompletedAt != nil && snap.CompletedAt.Before(cutoff) {
			delete(tm.tasks, taskID)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("🧹 Cleaned up %d old tasks", removed)
	}
	return removed
}

func (tm *TaskManager) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tm.CleanupOldTasks(tm.cfg.RetainFor)
		case <-tm.stopChan:
			return
		}
	}
}

func (tm *TaskManager) worker() {
	defer tm.wg.Done()

	for {
		select {
		case <-tm.stopChan:
			return
		case task := <-tm.taskQueue:
			tm.process(task)
		}
	}
}

// process runs a single task
func (tm *TaskManager) process(task *models.PriceCheckTask) {
	tm.active.Add(1)
	defer tm.active.Add(-1)

	log.Printf("👷 Worker started processing task %s for %s", task.ID, task.URL)
	task.Start()
	task.UpdateProgress(10, "Checking product price...")

	ctx, cancel := context.WithTimeout(tm.ctx, tm.cfg.TaskTimeout)
	defer cancel()

	result, err := tm.checker.CheckProductPrice(ctx, task.URL)
	if err != nil {
		task.Fail(apperrors.UserMessage(err))
		log.Printf("❌ Task %s failed: %v", task.ID, err)
		return
	}

	task.UpdateProgress(90, "Saving result...")
	task.Complete(result)
	log.Printf("✅ Task %s completed successfully in %v", task.ID, task.Duration())
}

// Stop stops the workers, cancels in-flight checks and fails whatever is
// still queued. Safe to call more than once.
func (tm *TaskManager) Stop() {
	tm.stopOnce.Do(func() {
		log.Println("🛑 Task manager stopping...")
		tm.mutex.Lock()
		tm.stopped = true
		tm.mutex.Unlock()

		close(tm.stopChan)
		tm.cancel()
		tm.wg.Wait()

		for {
			select {
			case task := <-tm.taskQueue:
				task.Fail("Task manager is shutting down")
			default:
				log.Println("🛑 Task manager stopped")
				return
			}
		}
	})
}

// GetStats returns task manager statistics
func (tm *TaskManager) GetStats() TaskStats {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	stats := TaskStats{
		TotalTasks:    len(tm.tasks),
		ActiveWorkers: int(tm.active.Load()),
		MaxWorkers:    tm.cfg.Workers,
		QueueSize:     len(tm.taskQueue),
		QueueCapacity: cap(tm.taskQueue),
		TasksByStatus: make(map[string]int),
	}
	for _, task := range tm.tasks {
		stats.TasksByStatus[string(task.Snapshot().Status)]++
		if task.IsActive() {
			stats.ActiveTasks++
		}
	}
	return stats
}
