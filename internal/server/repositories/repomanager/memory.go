package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
)

// MemoryRepositoryManager serves every repository from one memory.Store.
type MemoryRepositoryManager struct {
	*memory.Store
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{Store: memory.NewStore()}
}

// RunMigrations is a no-op; the store has no schema.
func (m *MemoryRepositoryManager) RunMigrations(context.Context) error {
	return nil
}

func (m *MemoryRepositoryManager) InTx(ctx context.Context, fn TxFunc) error {
	return m.Store.InTx(ctx, func(ctx context.Context, tx *memory.Tx) error {
		return fn(ctx, tx)
	})
}

func (m *MemoryRepositoryManager) Close() error {
	return nil
}
