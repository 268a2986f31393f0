// Package accounts declares the account repository contract and its
// PostgreSQL implementation.
package accounts

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores account identity records. Lookups that match nothing
// return common.ErrorNotFound.
type Repository interface {
	// Create inserts a and fills its ID and timestamps. A taken email yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	// FindByIDForUpdate is FindByID that also locks the row until the
	// surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id string) (*models.Account, error)
	UpdateStatus(ctx context.Context, id string, status models.AccountStatus) error
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	// UpdateAvatar sets the avatar object key; "" clears it.
	UpdateAvatar(ctx context.Context, id string, key string) error
}

// NormalizeEmail is the canonical form emails are stored and matched in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
