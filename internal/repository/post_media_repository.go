package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maheshrc27/postgroup/internal/models"
)

type PostMediaRepository interface {
	Upsert(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostMediaItem, error)
}

type postMediaRepository struct {
	db *sql.DB
}

func NewPostMediaRepository(db *sql.DB) PostMediaRepository {
	return &postMediaRepository{db: db}
}

// Upsert links a media item to a post. Linking the same pair again only
// rewrites its display order.
func (r *postMediaRepository) Upsert(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error {
	query := `
		INSERT INTO post_media (post_id, media_id, display_order)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, media_id) DO UPDATE
		SET display_order = EXCLUDED.display_order
	`
	if _, err := conn(r.db, tx).ExecContext(ctx, query, pm.PostID, pm.MediaID, pm.DisplayOrder); err != nil {
		return fmt.Errorf("upsert post media %d/%d: %w", pm.PostID, pm.MediaID, err)
	}
	return nil
}

// ListByPostID returns the post's media in display order together with the
// last download result of each item.
func (r *postMediaRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostMediaItem, error) {
	query := `
		SELECT pm.post_id, pm.display_order,
			m.id, m.url, m.type, m.local_path, m.created_at, m.updated_at,
			dr.status, dr.error
		FROM post_media pm
		JOIN media m ON m.id = pm.media_id
		LEFT JOIN media_download_results dr ON dr.media_id = m.id
		WHERE pm.post_id = $1
		ORDER BY pm.display_order
	`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("list post %d media: %w", postID, err)
	}
	defer rows.Close()

	var items []*models.PostMediaItem
	for rows.Next() {
		var item models.PostMediaItem
		var localPath, status, downloadErr sql.NullString
		err := rows.Scan(
			&item.PostID,
			&item.DisplayOrder,
			&item.Media.ID,
			&item.Media.URL,
			&item.Media.Type,
			&localPath,
			&item.Media.CreatedAt,
			&item.Media.UpdatedAt,
			&status,
			&downloadErr,
		)
		if err != nil {
			return nil, fmt.Errorf("scan post media: %w", err)
		}
		item.Media.LocalPath = stringPtr(localPath)
		item.DownloadStatus = stringPtr(status)
		item.DownloadError = stringPtr(downloadErr)
		items = append(items, &item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list post %d media: %w", postID, err)
	}

	return items, nil
}
