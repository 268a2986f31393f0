package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/migrations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/actiontokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/passwordhistory"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokenpairs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// postgresRepositories binds repository constructors to one DBTX, either
// the pool or an open transaction.
type postgresRepositories struct {
	db dbx.DBTX
}

func (r postgresRepositories) Accounts() accounts.Repository {
	return accounts.NewPostgresRepository(r.db)
}

func (r postgresRepositories) TokenPairs() tokenpairs.Repository {
	return tokenpairs.NewPostgresRepository(r.db)
}

func (r postgresRepositories) ActionTokens() actiontokens.Repository {
	return actiontokens.NewPostgresRepository(r.db)
}

func (r postgresRepositories) PasswordHistory() passwordhistory.Repository {
	return passwordhistory.NewPostgresRepository(r.db)
}

// PostgresRepositoryManager vends PostgreSQL-backed repositories.
type PostgresRepositoryManager struct {
	postgresRepositories
	db *sql.DB
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

func (m *PostgresRepositoryManager) InTx(ctx context.Context, fn TxFunc) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, postgresRepositories{db: tx})
	})
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{postgresRepositories: postgresRepositories{db: db}, db: db}, nil
}
