package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// EnsureSchema creates the pipeline tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// TxRunner runs fn inside a transaction. A nil tx is valid and means the
// repositories write directly.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Store bundles the repositories the pipeline reads and writes.
type Store struct {
	Tx        TxRunner
	Posts     PostRepository
	Media     MediaRepository
	PostMedia PostMediaRepository
	Downloads MediaDownloadResultRepository
	Results   PostResultRepository
}

func NewStore(db *sql.DB) Store {
	return Store{
		Tx:        &sqlTxRunner{db: db},
		Posts:     NewPostRepository(db),
		Media:     NewMediaRepository(db),
		PostMedia: NewPostMediaRepository(db),
		Downloads: NewMediaDownloadResultRepository(db),
		Results:   NewPostResultRepository(db),
	}
}

type sqlTxRunner struct {
	db *sql.DB
}

func (r *sqlTxRunner) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func conn(db *sql.DB, tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return db
}
