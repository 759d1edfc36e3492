package models

import "time"

// Post is one platform-scoped unit of content. Posts sharing a GroupID form a group.
type Post struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	GroupID   string    `db:"group_id" json:"group_id"`
	Platform  string    `db:"platform" json:"platform"`
	Text      string    `db:"text" json:"text"`
	Status    string    `db:"status" json:"status"` // pending, working, success, failed
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusPending = "pending"
	PostStatusWorking = "working"
	PostStatusSuccess = "success"
	PostStatusFailed  = "failed"
)

