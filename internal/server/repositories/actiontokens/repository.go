// Package actiontokens stores single-use activation and password-reset tokens.
package actiontokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	// Create persists t and fills its ID and IssuedAt.
	Create(ctx context.Context, t *models.ActionToken) (*models.ActionToken, error)

	// FindByToken returns the record holding token if it was issued for kind.
	FindByToken(ctx context.Context, token string, kind models.ActionKind) (*models.ActionToken, error)

	// DeleteByToken consumes token. It returns common.ErrorNotFound when the
	// token was already consumed or never existed.
	DeleteByToken(ctx context.Context, token string) error

	// DeleteAllForAccount removes every token of kind held by accountID.
	DeleteAllForAccount(ctx context.Context, accountID string, kind models.ActionKind) (int64, error)

	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
