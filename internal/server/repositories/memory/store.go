// Package memory is an in-process implementation of every repository,
// intended for development and tests. All state lives behind one mutex.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/actiontokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/passwordhistory"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokenpairs"
)

type state struct {
	accounts map[string]models.Account // by id
	emails   map[string]string         // normalized email -> id
	pairs    map[string]models.TokenPair
	actions  map[string]models.ActionToken // by token
	history  []models.OldPasswordRecord
}

func newState() *state {
	return &state{
		accounts: make(map[string]models.Account),
		emails:   make(map[string]string),
		pairs:    make(map[string]models.TokenPair),
		actions:  make(map[string]models.ActionToken),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.pairs {
		c.pairs[k] = v
	}
	for k, v := range s.actions {
		c.actions[k] = v
	}
	c.history = append([]models.OldPasswordRecord(nil), s.history...)
	return c
}

// Store holds the four record collections.
type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newState(), now: time.Now}
}

// SetClock replaces the time source used for IssuedAt/CreatedAt stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// view is a handle over the store. Views handed out inside InTx run with
// the store mutex already held.
type view struct {
	s      *Store
	locked bool
}

func (v view) do(fn func(st *state) error) error {
	if !v.locked {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn(v.s.data)
}

func (v view) now() time.Time {
	return v.s.now().UTC()
}

func (s *Store) Accounts() accounts.Repository {
	return &AccountRepository{view{s: s}}
}

func (s *Store) TokenPairs() tokenpairs.Repository {
	return &TokenPairRepository{view{s: s}}
}

func (s *Store) ActionTokens() actiontokens.Repository {
	return &ActionTokenRepository{view{s: s}}
}

func (s *Store) PasswordHistory() passwordhistory.Repository {
	return &PasswordHistoryRepository{view{s: s}}
}

// Tx exposes the repositories bound to one InTx call.
type Tx struct {
	v view
}

func (t *Tx) Accounts() accounts.Repository               { return &AccountRepository{t.v} }
func (t *Tx) TokenPairs() tokenpairs.Repository           { return &TokenPairRepository{t.v} }
func (t *Tx) ActionTokens() actiontokens.Repository       { return &ActionTokenRepository{t.v} }
func (t *Tx) PasswordHistory() passwordhistory.Repository { return &PasswordHistoryRepository{t.v} }

// InTx runs fn with exclusive access to the store. If fn returns an error or
// panics, every change it made is discarded.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
		if err != nil {
			s.data = snapshot
		}
	}()

	return fn(ctx, &Tx{v: view{s: s, locked: true}})
}
