package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maheshrc27/postgroup/internal/models"
)

type SocialAccountRepository interface {
	GetByUserAndPlatform(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error)
	ListExpiring(ctx context.Context, platform string, initialTime, finalTime time.Time) ([]*models.SocialAccount, error)
	SetToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
	SetStatus(ctx context.Context, id int64, status string) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const socialAccountColumns = `id, user_id, platform, account_id, account_username, access_token,
	refresh_token, token_expires_at, account_status, created_at, updated_at`

func scanSocialAccount(row interface{ Scan(dest ...any) error }) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.UserID, &sa.Platform, &sa.AccountID, &sa.AccountUsername,
		&sa.AccessToken, &sa.RefreshToken, &sa.TokenExpiresAt, &sa.AccountStatus,
		&sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

// GetByUserAndPlatform returns the user's most recently updated account on the platform.
func (r *socialAccountRepository) GetByUserAndPlatform(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + `
		FROM social_accounts
		WHERE user_id = $1 AND platform = $2
		ORDER BY updated_at DESC
		LIMIT 1`

	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, userID, platform))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s account for user %d: %w", platform, userID, err)
	}
	return sa, nil
}

func (r *socialAccountRepository) ListExpiring(ctx context.Context, platform string, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + `
		FROM social_accounts
		WHERE platform = $1
			AND account_status = 'active'
			AND refresh_token <> ''
			AND token_expires_at BETWEEN $2 AND $3`

	rows, err := r.db.QueryContext(ctx, query, platform, initialTime, finalTime)
	if err != nil {
		return nil, fmt.Errorf("list expiring %s accounts: %w", platform, err)
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan social account: %w", err)
		}
		accounts = append(accounts, sa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expiring %s accounts: %w", platform, err)
	}
	return accounts, nil
}

func (r *socialAccountRepository) SetToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE social_accounts
		SET access_token = $1,
			refresh_token = $2,
			token_expires_at = $3,
			account_status = 'active',
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, accessToken, refreshToken, expiresAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("set token for account %d: %w", id, err)
	}
	return nil
}

func (r *socialAccountRepository) SetStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE social_accounts SET account_status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now(), id); err != nil {
		return fmt.Errorf("set status for account %d: %w", id, err)
	}
	return nil
}
