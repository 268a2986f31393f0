package passwordhistory

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, accountID string, hash string) error {
	query :=
		`INSERT INTO password_history (account_id, password_hash)
		 VALUES ($1, $2)
		 `
	if _, err := r.db.ExecContext(ctx, query, accountID, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListForAccount(ctx context.Context, accountID string, limit int) ([]models.OldPasswordRecord, error) {
	query :=
		`SELECT id, account_id, password_hash, created_at
		 FROM password_history
		 WHERE account_id = $1
		 ORDER BY created_at DESC, id DESC
		 `
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var records []models.OldPasswordRecord
	for rows.Next() {
		var rec models.OldPasswordRecord
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.PasswordHash, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return records, nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query :=
		`DELETE FROM password_history
		 WHERE created_at < $1
		 `
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
