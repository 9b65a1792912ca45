package models

import "time"

// Task kinds and statuses for the durable work queue. Queue rows are keyed
// by submission id so pending validation work survives a process restart.
const (
	TaskValidate = "validate"
	TaskPost     = "post"

	TaskPending = "pending"
	TaskRunning = "running"
	TaskDone    = "done"
	TaskFailed  = "failed"
)

type Task struct {
	TaskID       int       `gorm:"primaryKey;column:task_id" json:"task_id"`
	SubmissionID int       `gorm:"column:submission_id;index" json:"submission_id"`
	Kind         string    `gorm:"column:kind;size:16" json:"kind"`
	Status       string    `gorm:"column:status;size:16;index" json:"status"`
	Attempts     int       `gorm:"column:attempts" json:"attempts"`
	LastError    *string   `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	RunAfter     time.Time `gorm:"column:run_after" json:"run_after"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}
