package model

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	TeamID      int64      `json:"team_id" validate:"required"`
}

type TaskAssignment struct {
	TaskID     int64      `json:"task_id"`
	UserID     int64      `json:"user_id"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
}
