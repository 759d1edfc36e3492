package models

import "time"

// Media is a downloadable asset, unique by URL and shared between posts.
type Media struct {
	ID        int64     `db:"id"`
	URL       string    `db:"url"`
	Type      string    `db:"type"` // image, video
	LocalPath *string   `db:"local_path"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

type PostMedia struct {
	PostID       int64     `db:"post_id"`
	MediaID      int64     `db:"media_id"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}

// PostMediaItem is a post's media link joined with the media row and its last
// download result.
type PostMediaItem struct {
	PostID         int64   `db:"post_id"`
	DisplayOrder   int     `db:"display_order"`
	Media          Media   `db:"media"`
	DownloadStatus *string `db:"download_status"`
	DownloadError  *string `db:"download_error"`
}
