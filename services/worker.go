package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"gorm.io/gorm"
)

const maxTaskAttempts = 5

// TaskQueue is the durable work queue. Rows are keyed by submission id so
// a process restart loses nothing: pending tasks are simply claimed again.
type TaskQueue struct {
	db *gorm.DB
}

func NewTaskQueue(db *gorm.DB) *TaskQueue {
	if db == nil {
		db = config.DB
	}
	return &TaskQueue{db: db}
}

// Enqueue records work for a submission. Runs inside the caller's
// transaction when tx is non-nil, so the task and the state that demands
// it commit together.
func (q *TaskQueue) Enqueue(tx *gorm.DB, submissionID int, kind string) error {
	if tx == nil {
		tx = q.db
	}
	return tx.Create(&models.Task{
		SubmissionID: submissionID,
		Kind:         kind,
		Status:       models.TaskPending,
		RunAfter:     time.Now(),
	}).Error
}

// Claim atomically takes one due pending task. Returns nil when the queue
// is empty. The guarded UPDATE is the claim: two workers cannot win the
// same row.
func (q *TaskQueue) Claim() (*models.Task, error) {
	var task models.Task
	err := q.db.
		Where("status = ? AND run_after <= ?", models.TaskPending, time.Now()).
		Order("task_id ASC").
		First(&task).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res := q.db.Model(&models.Task{}).
		Where("task_id = ? AND status = ?", task.TaskID, models.TaskPending).
		Updates(map[string]any{"status": models.TaskRunning, "attempts": task.Attempts + 1})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil // another worker got there first
	}
	task.Status = models.TaskRunning
	task.Attempts++
	return &task, nil
}

// Complete marks a claimed task done.
func (q *TaskQueue) Complete(task *models.Task) error {
	return q.db.Model(task).Update("status", models.TaskDone).Error
}

// Fail records a failure; the task retries with backoff until the attempt
// budget is spent, then parks as failed.
func (q *TaskQueue) Fail(task *models.Task, cause error) error {
	msg := cause.Error()
	if task.Attempts >= maxTaskAttempts {
		return q.db.Model(task).Updates(map[string]any{
			"status":     models.TaskFailed,
			"last_error": msg,
		}).Error
	}
	backoff := time.Duration(task.Attempts*task.Attempts) * 30 * time.Second
	return q.db.Model(task).Updates(map[string]any{
		"status":     models.TaskPending,
		"last_error": msg,
		"run_after":  time.Now().Add(backoff),
	}).Error
}

// Worker executes queued tasks with a small pool of goroutines.
type Worker struct {
	queue    *TaskQueue
	pipeline *Pipeline
	poster   *Poster
	settings config.Settings
}

func NewWorker(queue *TaskQueue, pipeline *Pipeline, poster *Poster, settings config.Settings) *Worker {
	return &Worker{queue: queue, pipeline: pipeline, poster: poster, settings: settings}
}

// Run polls the queue until the context ends.
func (w *Worker) Run(ctx context.Context) {
	count := w.settings.WorkerCount
	if count <= 0 {
		count = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(w.settings.PollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					w.drain(ctx)
				}
			}
		}()
	}
	wg.Wait()
}

func (w *Worker) drain(ctx context.Context) {
	for {
		task, err := w.queue.Claim()
		if err != nil {
			log.Printf("task claim failed: %v", err)
			return
		}
		if task == nil {
			return
		}
		if err := w.execute(ctx, task); err != nil {
			log.Printf("task %d (%s, submission %d) failed: %v", task.TaskID, task.Kind, task.SubmissionID, err)
			if ferr := w.queue.Fail(task, err); ferr != nil {
				log.Printf("task %d could not be marked failed: %v", task.TaskID, ferr)
			}
			continue
		}
		if err := w.queue.Complete(task); err != nil {
			log.Printf("task %d could not be marked done: %v", task.TaskID, err)
		}
	}
}

func (w *Worker) execute(ctx context.Context, task *models.Task) error {
	switch task.Kind {
	case models.TaskValidate:
		return w.pipeline.Validate(ctx, task.SubmissionID)
	case models.TaskPost:
		_, err := w.poster.Post(ctx, task.SubmissionID, nil, "Posted by background worker")
		return err
	}
	return fmt.Errorf("unknown task kind %q", task.Kind)
}
