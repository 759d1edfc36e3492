package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postgroup/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListByGroupID(ctx context.Context, groupID string, statuses ...string) ([]*models.Post, error)
	ListByGroupAndUser(ctx context.Context, groupID string, userID int64) ([]*models.Post, error)
	UpdatePostStatus(ctx context.Context, status string, postID int64) error
	UpdatePostsStatus(ctx context.Context, status string, postIDs []int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, group_id, platform, text, status, created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, group_id, platform, text, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	status := post.Status
	if status == "" {
		status = models.PostStatusPending
	}

	var id int64
	err := conn(r.db, tx).QueryRowContext(ctx, query, post.UserID, post.GroupID, post.Platform, post.Text, status).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.GroupID, &post.Platform, &post.Text, &post.Status, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}

	return &post, nil
}

// ListByGroupID returns the group's posts in creation order. When statuses are
// given only posts in one of them are returned.
func (r *postRepository) ListByGroupID(ctx context.Context, groupID string, statuses ...string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE group_id = $1`
	args := []any{groupID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(statuses))
	}
	query += ` ORDER BY id`

	return r.list(ctx, query, args...)
}

func (r *postRepository) ListByGroupAndUser(ctx context.Context, groupID string, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE group_id = $1 AND user_id = $2 ORDER BY id`
	return r.list(ctx, query, groupID, userID)
}

func (r *postRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var post models.Post
		err := rows.Scan(&post.ID, &post.UserID, &post.GroupID, &post.Platform, &post.Text, &post.Status, &post.CreatedAt, &post.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, &post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (r *postRepository) UpdatePostStatus(ctx context.Context, status string, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		return fmt.Errorf("update post %d status: %w", postID, err)
	}
	return nil
}

func (r *postRepository) UpdatePostsStatus(ctx context.Context, status string, postIDs []int64) error {
	if len(postIDs) == 0 {
		return nil
	}
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = ANY($3)
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), pq.Array(postIDs))
	if err != nil {
		return fmt.Errorf("update posts status: %w", err)
	}
	return nil
}
