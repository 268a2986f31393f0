// Package repomanager wires the repositories together behind one handle and
// exposes schema migrations and transactions.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/actiontokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/passwordhistory"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokenpairs"
)

// MemoryDSN selects the in-memory backend.
const MemoryDSN = "memory"

// Repositories vends the four credential repositories.
type Repositories interface {
	Accounts() accounts.Repository
	TokenPairs() tokenpairs.Repository
	ActionTokens() actiontokens.Repository
	PasswordHistory() passwordhistory.Repository
}

// TxFunc is run by InTx against repositories bound to one transaction.
type TxFunc func(ctx context.Context, tx Repositories) error

type RepositoryManager interface {
	Repositories

	// RunMigrations brings the schema up to date.
	RunMigrations(ctx context.Context) error

	// InTx commits the writes of fn if it returns nil and discards them
	// otherwise.
	InTx(ctx context.Context, fn TxFunc) error

	Close() error
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// New returns the manager selected by dsn: MemoryDSN for the in-process
// store, anything else is a PostgreSQL connection string.
func New(ctx context.Context, dsn string) (RepositoryManager, error) {
	if dsn == MemoryDSN {
		return NewMemoryRepositoryManager(), nil
	}

	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewPostgresRepositoryManager(db)
}
