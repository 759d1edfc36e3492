package models

import "time"

// PostResult is the outcome of the most recent posting attempt for a post.
type PostResult struct {
	PostID         int64     `db:"post_id" json:"post_id"`
	Status         string    `db:"status" json:"status"` // pending, success, failed
	StatusText     string    `db:"status_text" json:"status_text"`
	PlatformPostID *string   `db:"platform_post_id" json:"platform_post_id"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PostResultStatusPending = "pending"
	PostResultStatusSuccess = "success"
	PostResultStatusFailed  = "failed"
)
