package models

import "time"

// Session is the opaque credential bundle produced by the login collaborator.
type Session map[string]any

type Account struct {
	ID         int64     `db:"id" json:"id"`
	Username   string    `db:"username" json:"username"`
	Session    Session   `db:"session_data" json:"-"`
	ProfilePic string    `db:"profile_pic" json:"profile_pic,omitempty"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
