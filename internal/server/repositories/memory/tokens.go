package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

type TokenPairRepository struct {
	v view
}

func (r *TokenPairRepository) Create(ctx context.Context, p *models.TokenPair) (*models.TokenPair, error) {
	err := r.v.do(func(st *state) error {
		p.ID = uuid.NewString()
		p.IssuedAt = r.v.now()
		st.pairs[p.RefreshToken] = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *TokenPairRepository) FindByRefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	var out *models.TokenPair
	err := r.v.do(func(st *state) error {
		p, ok := st.pairs[refreshToken]
		if !ok {
			return common.ErrorNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *TokenPairRepository) FindByAccessToken(ctx context.Context, accessToken string) (*models.TokenPair, error) {
	var out *models.TokenPair
	err := r.v.do(func(st *state) error {
		for _, p := range st.pairs {
			if p.AccessToken == accessToken {
				out = &p
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return out, err
}

func (r *TokenPairRepository) Rotate(ctx context.Context, oldRefresh string, next *models.TokenPair) (*models.TokenPair, error) {
	err := r.v.do(func(st *state) error {
		old, ok := st.pairs[oldRefresh]
		if !ok {
			return common.ErrorNotFound
		}
		delete(st.pairs, oldRefresh)

		next.ID = uuid.NewString()
		next.AccountID = old.AccountID
		next.IssuedAt = r.v.now()
		st.pairs[next.RefreshToken] = *next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (r *TokenPairRepository) DeleteByRefreshToken(ctx context.Context, refreshToken string) error {
	return r.v.do(func(st *state) error {
		delete(st.pairs, refreshToken)
		return nil
	})
}

func (r *TokenPairRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		for k, p := range st.pairs {
			if p.IssuedAt.Before(cutoff) {
				delete(st.pairs, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

type ActionTokenRepository struct {
	v view
}

func (r *ActionTokenRepository) Create(ctx context.Context, t *models.ActionToken) (*models.ActionToken, error) {
	err := r.v.do(func(st *state) error {
		t.ID = uuid.NewString()
		t.IssuedAt = r.v.now()
		st.actions[t.Token] = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *ActionTokenRepository) FindByToken(ctx context.Context, token string, kind models.ActionKind) (*models.ActionToken, error) {
	var out *models.ActionToken
	err := r.v.do(func(st *state) error {
		t, ok := st.actions[token]
		if !ok || t.Kind != kind {
			return common.ErrorNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *ActionTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.actions[token]; !ok {
			return common.ErrorNotFound
		}
		delete(st.actions, token)
		return nil
	})
}

func (r *ActionTokenRepository) DeleteAllForAccount(ctx context.Context, accountID string, kind models.ActionKind) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		for k, t := range st.actions {
			if t.AccountID == accountID && t.Kind == kind {
				delete(st.actions, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *ActionTokenRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		for k, t := range st.actions {
			if t.IssuedAt.Before(cutoff) {
				delete(st.actions, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

type PasswordHistoryRepository struct {
	v view
}

func (r *PasswordHistoryRepository) Create(ctx context.Context, accountID string, hash string) error {
	return r.v.do(func(st *state) error {
		st.history = append(st.history, models.OldPasswordRecord{
			ID:           uuid.NewString(),
			AccountID:    accountID,
			PasswordHash: hash,
			CreatedAt:    r.v.now(),
		})
		return nil
	})
}

func (r *PasswordHistoryRepository) ListForAccount(ctx context.Context, accountID string, limit int) ([]models.OldPasswordRecord, error) {
	var out []models.OldPasswordRecord
	err := r.v.do(func(st *state) error {
		// history is append-only, so a reverse walk is newest first.
		for i := len(st.history) - 1; i >= 0; i-- {
			if st.history[i].AccountID != accountID {
				continue
			}
			out = append(out, st.history[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *PasswordHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		kept := st.history[:0]
		for _, rec := range st.history {
			if rec.CreatedAt.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, rec)
		}
		st.history = kept
		return nil
	})
	return n, err
}
