package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maheshrc27/postgroup/internal/models"
)

type MediaRepository interface {
	Upsert(ctx context.Context, tx *sql.Tx, m *models.Media) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Media, error)
	SetLocalPath(ctx context.Context, id int64, localPath string) error
}

type mediaRepository struct {
	db *sql.DB
}

func NewMediaRepository(db *sql.DB) MediaRepository {
	return &mediaRepository{db: db}
}

// Upsert inserts the media row for m.URL or returns the id of the existing one.
// An existing local_path is never touched.
func (r *mediaRepository) Upsert(ctx context.Context, tx *sql.Tx, m *models.Media) (int64, error) {
	query := `
		INSERT INTO media (url, type)
		VALUES ($1, $2)
		ON CONFLICT (url) DO UPDATE
		SET type = EXCLUDED.type,
			updated_at = now()
		RETURNING id
	`

	var id int64
	if err := conn(r.db, tx).QueryRowContext(ctx, query, m.URL, m.Type).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert media %s: %w", m.URL, err)
	}
	return id, nil
}

func (r *mediaRepository) GetByID(ctx context.Context, id int64) (*models.Media, error) {
	query := `
		SELECT id, url, type, local_path, created_at, updated_at
		FROM media
		WHERE id = $1
	`

	var m models.Media
	var localPath sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&m.ID, &m.URL, &m.Type, &localPath, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get media %d: %w", id, err)
	}
	m.LocalPath = stringPtr(localPath)

	return &m, nil
}

func (r *mediaRepository) SetLocalPath(ctx context.Context, id int64, localPath string) error {
	query := `UPDATE media SET local_path = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, localPath, time.Now(), id); err != nil {
		return fmt.Errorf("set media %d local path: %w", id, err)
	}
	return nil
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
