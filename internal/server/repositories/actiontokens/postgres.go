package actiontokens

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.ActionToken) (*models.ActionToken, error) {
	query :=
		`INSERT INTO action_tokens (token, account_id, kind)
		 VALUES ($1, $2, $3)
		 RETURNING id, issued_at
		 `

	if err := r.db.QueryRowContext(ctx, query, t.Token, t.AccountID, string(t.Kind)).Scan(&t.ID, &t.IssuedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string, kind models.ActionKind) (*models.ActionToken, error) {
	query :=
		`SELECT id, token, account_id, kind, issued_at
		 FROM action_tokens
		 WHERE token = $1 AND kind = $2
		 `

	t := &models.ActionToken{}
	var k string
	err := r.db.QueryRowContext(ctx, query, token, string(kind)).Scan(&t.ID, &t.Token, &t.AccountID, &k, &t.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.Kind = models.ActionKind(k)
	return t, nil
}

func (r *PostgresRepository) DeleteByToken(ctx context.Context, token string) error {
	query :=
		`DELETE FROM action_tokens
		 WHERE token = $1
		 `

	res, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteAllForAccount(ctx context.Context, accountID string, kind models.ActionKind) (int64, error) {
	query :=
		`DELETE FROM action_tokens
		 WHERE account_id = $1 AND kind = $2
		 `

	res, err := r.db.ExecContext(ctx, query, accountID, string(kind))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query :=
		`DELETE FROM action_tokens
		 WHERE issued_at < $1
		 `

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
