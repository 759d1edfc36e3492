package models

import "time"

// MediaDownloadResult tracks the last download attempt for a media item.
type MediaDownloadResult struct {
	MediaID      int64      `db:"media_id"`
	Status       string     `db:"status"` // downloading, success, failed
	Error        *string    `db:"error"`
	LocalPath    *string    `db:"local_path"`
	DownloadedAt *time.Time `db:"downloaded_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

const (
	DownloadStatusDownloading = "downloading"
	DownloadStatusSuccess     = "success"
	DownloadStatusFailed      = "failed"
)
