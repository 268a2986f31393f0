// Package passwordhistory archives replaced password hashes for reuse checks.
package passwordhistory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, accountID string, hash string) error

	// ListForAccount returns archived records newest first. limit <= 0
	// returns all of them.
	ListForAccount(ctx context.Context, accountID string, limit int) ([]models.OldPasswordRecord, error)

	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
