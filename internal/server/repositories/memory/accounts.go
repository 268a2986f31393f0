package memory

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/google/uuid"
)

type AccountRepository struct {
	v view
}

func (r *AccountRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	err := r.v.do(func(st *state) error {
		email := accounts.NormalizeEmail(a.Email)
		if _, taken := st.emails[email]; taken {
			return common.ErrorAlreadyExists
		}

		now := r.v.now()
		a.ID = uuid.NewString()
		a.Email = email
		if a.Status == "" {
			a.Status = models.AccountPending
		}
		a.CreatedAt = now
		a.UpdatedAt = now

		st.accounts[a.ID] = *a
		st.emails[email] = a.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var out *models.Account
	err := r.v.do(func(st *state) error {
		id, ok := st.emails[accounts.NormalizeEmail(email)]
		if !ok {
			return common.ErrorNotFound
		}
		a := st.accounts[id]
		out = &a
		return nil
	})
	return out, err
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	var out *models.Account
	err := r.v.do(func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

// FindByIDForUpdate is FindByID; inside InTx the whole store is already locked.
func (r *AccountRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.Account, error) {
	return r.FindByID(ctx, id)
}

func (r *AccountRepository) update(id string, fn func(a *models.Account)) error {
	return r.v.do(func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return common.ErrorNotFound
		}
		fn(&a)
		a.UpdatedAt = r.v.now()
		st.accounts[id] = a
		return nil
	})
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, status models.AccountStatus) error {
	return r.update(id, func(a *models.Account) { a.Status = status })
}

func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	return r.update(id, func(a *models.Account) { a.PasswordHash = hash })
}

func (r *AccountRepository) UpdateAvatar(ctx context.Context, id string, key string) error {
	return r.update(id, func(a *models.Account) { a.Avatar = key })
}
