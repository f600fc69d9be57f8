package model

import "time"

type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	Email     string     `json:"email,omitempty"`
	Location  string     `json:"location,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
