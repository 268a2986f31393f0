// Package tokenpairs declares the server-side repository contract for issued
// access/refresh token pairs, and its PostgreSQL implementation.
package tokenpairs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores issued token pairs keyed by their token strings.
type Repository interface {
	// Create persists p and fills its ID and IssuedAt.
	Create(ctx context.Context, p *models.TokenPair) (*models.TokenPair, error)

	FindByRefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	FindByAccessToken(ctx context.Context, accessToken string) (*models.TokenPair, error)

	// Rotate deletes the pair holding oldRefresh and inserts next as one
	// atomic step. When no pair holds oldRefresh nothing is inserted and
	// common.ErrorNotFound is returned, so of two concurrent callers with
	// the same token exactly one succeeds.
	Rotate(ctx context.Context, oldRefresh string, next *models.TokenPair) (*models.TokenPair, error)

	// DeleteByRefreshToken revokes a single pair. Missing pairs are not an error.
	DeleteByRefreshToken(ctx context.Context, refreshToken string) error

	// DeleteOlderThan purges pairs issued before cutoff and reports how many.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
