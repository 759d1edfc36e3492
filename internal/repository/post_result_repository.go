package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/maheshrc27/postgroup/internal/models"
)

type PostResultRepository interface {
	Upsert(ctx context.Context, r *models.PostResult) error
	GetByPostID(ctx context.Context, postID int64) (*models.PostResult, error)
	ListByPostIDs(ctx context.Context, postIDs []int64) ([]*models.PostResult, error)
}

type postResultRepository struct {
	db *sql.DB
}

func NewPostResultRepository(db *sql.DB) PostResultRepository {
	return &postResultRepository{db: db}
}

// Upsert overwrites the post's previous result, so only the latest attempt is kept.
func (r *postResultRepository) Upsert(ctx context.Context, res *models.PostResult) error {
	query := `
		INSERT INTO post_results (post_id, status, status_text, platform_post_id, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (post_id) DO UPDATE
		SET status = EXCLUDED.status,
			status_text = EXCLUDED.status_text,
			platform_post_id = EXCLUDED.platform_post_id,
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query, res.PostID, res.Status, res.StatusText, res.PlatformPostID)
	if err != nil {
		return fmt.Errorf("upsert result for post %d: %w", res.PostID, err)
	}
	return nil
}

func (r *postResultRepository) GetByPostID(ctx context.Context, postID int64) (*models.PostResult, error) {
	query := `SELECT post_id, status, status_text, platform_post_id, updated_at FROM post_results WHERE post_id = $1`

	var res models.PostResult
	var platformPostID sql.NullString
	err := r.db.QueryRowContext(ctx, query, postID).Scan(&res.PostID, &res.Status, &res.StatusText, &platformPostID, &res.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get result for post %d: %w", postID, err)
	}
	res.PlatformPostID = stringPtr(platformPostID)

	return &res, nil
}

func (r *postResultRepository) ListByPostIDs(ctx context.Context, postIDs []int64) ([]*models.PostResult, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	query := `SELECT post_id, status, status_text, platform_post_id, updated_at FROM post_results WHERE post_id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("list post results: %w", err)
	}
	defer rows.Close()

	var results []*models.PostResult
	for rows.Next() {
		var res models.PostResult
		var platformPostID sql.NullString
		if err := rows.Scan(&res.PostID, &res.Status, &res.StatusText, &platformPostID, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan post result: %w", err)
		}
		res.PlatformPostID = stringPtr(platformPostID)
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list post results: %w", err)
	}
	return results, nil
}
