package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maheshrc27/postgroup/internal/models"
)

type MediaDownloadResultRepository interface {
	Upsert(ctx context.Context, r *models.MediaDownloadResult) error
	GetByMediaID(ctx context.Context, mediaID int64) (*models.MediaDownloadResult, error)
}

type mediaDownloadResultRepository struct {
	db *sql.DB
}

func NewMediaDownloadResultRepository(db *sql.DB) MediaDownloadResultRepository {
	return &mediaDownloadResultRepository{db: db}
}

func (r *mediaDownloadResultRepository) Upsert(ctx context.Context, res *models.MediaDownloadResult) error {
	query := `
		INSERT INTO media_download_results (media_id, status, error, local_path, downloaded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (media_id) DO UPDATE
		SET status = EXCLUDED.status,
			error = EXCLUDED.error,
			local_path = COALESCE(EXCLUDED.local_path, media_download_results.local_path),
			downloaded_at = COALESCE(EXCLUDED.downloaded_at, media_download_results.downloaded_at),
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query, res.MediaID, res.Status, res.Error, res.LocalPath, res.DownloadedAt)
	if err != nil {
		return fmt.Errorf("upsert download result for media %d: %w", res.MediaID, err)
	}
	return nil
}

func (r *mediaDownloadResultRepository) GetByMediaID(ctx context.Context, mediaID int64) (*models.MediaDownloadResult, error) {
	query := `
		SELECT media_id, status, error, local_path, downloaded_at, updated_at
		FROM media_download_results
		WHERE media_id = $1
	`

	var res models.MediaDownloadResult
	var errText, localPath sql.NullString
	var downloadedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, mediaID).Scan(&res.MediaID, &res.Status, &errText, &localPath, &downloadedAt, &res.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get download result for media %d: %w", mediaID, err)
	}
	res.Error = stringPtr(errText)
	res.LocalPath = stringPtr(localPath)
	res.DownloadedAt = timePtr(downloadedAt)

	return &res, nil
}
