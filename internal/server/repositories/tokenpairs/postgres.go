package tokenpairs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.TokenPair) (*models.TokenPair, error) {
	query :=
		`INSERT INTO token_pairs (access_token, refresh_token, account_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, issued_at
		 `

	err := r.db.QueryRowContext(ctx, query, p.AccessToken, p.RefreshToken, p.AccountID).
		Scan(&p.ID, &p.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) FindByRefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	query :=
		`SELECT id, access_token, refresh_token, account_id, issued_at
		 FROM token_pairs
		 WHERE refresh_token = $1
		 `
	return scanPair(r.db.QueryRowContext(ctx, query, refreshToken))
}

func (r *PostgresRepository) FindByAccessToken(ctx context.Context, accessToken string) (*models.TokenPair, error) {
	query :=
		`SELECT id, access_token, refresh_token, account_id, issued_at
		 FROM token_pairs
		 WHERE access_token = $1
		 `
	return scanPair(r.db.QueryRowContext(ctx, query, accessToken))
}

func scanPair(row *sql.Row) (*models.TokenPair, error) {
	p := &models.TokenPair{}
	if err := row.Scan(&p.ID, &p.AccessToken, &p.RefreshToken, &p.AccountID, &p.IssuedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// Rotate runs the delete and the insert as one statement. The insert only
// produces a row when the delete removed one, and Postgres row locking makes
// a concurrent second delete of the same row see zero rows.
func (r *PostgresRepository) Rotate(ctx context.Context, oldRefresh string, next *models.TokenPair) (*models.TokenPair, error) {
	query :=
		`WITH deleted AS (
			DELETE FROM token_pairs
			WHERE refresh_token = $1
			RETURNING account_id
		 )
		 INSERT INTO token_pairs (access_token, refresh_token, account_id)
		 SELECT $2, $3, account_id FROM deleted
		 RETURNING id, account_id, issued_at
		 `

	err := r.db.QueryRowContext(ctx, query, oldRefresh, next.AccessToken, next.RefreshToken).
		Scan(&next.ID, &next.AccountID, &next.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return next, nil
}

func (r *PostgresRepository) DeleteByRefreshToken(ctx context.Context, refreshToken string) error {
	query :=
		`DELETE FROM token_pairs
		 WHERE refresh_token = $1
		 `
	if _, err := r.db.ExecContext(ctx, query, refreshToken); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query :=
		`DELETE FROM token_pairs
		 WHERE issued_at < $1
		 `
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
