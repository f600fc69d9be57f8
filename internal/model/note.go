package model

import "time"

type Note struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title,omitempty"`
	Content   string     `json:"content" validate:"required"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	AuthorID  int64      `json:"author_id"`
}

// TaskNote is a note listed in the context of the task it is linked to.
type TaskNote struct {
	TaskID    int64  `json:"task_id"`
	TaskTitle string `json:"task_title"`
	Note      *Note  `json:"note"`
}
