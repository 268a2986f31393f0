// Package services contains server-side business logic: the credential and
// token lifecycle (AuthService) and avatar storage (AvatarService).
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/email"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// AuthOptions are the policy knobs of AuthService.
type AuthOptions struct {
	// AllowPendingLogin lets accounts log in before activation.
	AllowPendingLogin bool
	// PasswordHistoryDepth bounds the reuse check to the newest N archived
	// hashes; 0 checks all of them.
	PasswordHistoryDepth int
	// EmailTimeout bounds each mailer call; 0 leaves it to the caller's ctx.
	EmailTimeout time.Duration
}

// AuthService runs the credential and token lifecycle: registration,
// activation, login, refresh rotation and password changes.
type AuthService struct {
	repos   repomanager.RepositoryManager
	hasher  *auth.Hasher
	codec   *auth.Codec
	mailer  email.Sender
	metrics *metrics.Metrics
	log     logging.Logger
	opts    AuthOptions

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	repos repomanager.RepositoryManager,
	hasher *auth.Hasher,
	codec *auth.Codec,
	mailer email.Sender,
	m *metrics.Metrics,
	log logging.Logger,
	opts AuthOptions,
) *AuthService {
	return &AuthService{
		repos:   repos,
		hasher:  hasher,
		codec:   codec,
		mailer:  mailer,
		metrics: m,
		log:     log.With("module", "auth"),
		opts:    opts,
	}
}

type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// Registration is the result of Register. EmailErr is set when the account
// was created but the activation email could not be sent.
type Registration struct {
	Account         *models.Account
	ActivationToken string
	EmailErr        error
}

// Register creates a pending account and issues its activation token. The
// token is persisted while the activation email is sent; an email failure
// does not undo the account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	acc, err := s.repos.Accounts().Create(ctx, &models.Account{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Status:       models.AccountPending,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	token, err := s.codec.Issue(auth.VariantActivate, auth.Payload{AccountID: acc.ID})
	if err != nil {
		return nil, err
	}

	var (
		wg       sync.WaitGroup
		storeErr error
		mailErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, storeErr = s.repos.ActionTokens().Create(ctx, &models.ActionToken{
			Token:     token,
			AccountID: acc.ID,
			Kind:      models.ActionActivate,
		})
	}()
	go func() {
		defer wg.Done()
		mctx, cancel := s.mailContext(ctx)
		defer cancel()
		mailErr = s.mailer.SendActivationEmail(mctx, acc.Email, acc.Name, token)
	}()
	wg.Wait()

	if storeErr != nil {
		return nil, fmt.Errorf("persist activation token: %w", storeErr)
	}

	reg := &Registration{Account: acc, ActivationToken: token}
	if mailErr != nil {
		s.log.Warn(ctx, "activation email not sent", "account_id", acc.ID, "error", mailErr)
		s.metrics.RegistrationDegraded()
		reg.EmailErr = fmt.Errorf("%w: %v", common.ErrorDelivery, mailErr)
	}

	s.log.Info(ctx, "account registered", "account_id", acc.ID)
	return reg, nil
}

func (s *AuthService) mailContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.EmailTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.EmailTimeout)
}

// FindAccountByEmail looks up an account for the transport layer's
// existence checks.
func (s *AuthService) FindAccountByEmail(ctx context.Context, emailAddr string) (*models.Account, error) {
	return s.repos.Accounts().FindByEmail(ctx, emailAddr)
}

// Activate marks the account active and drops every outstanding activation
// token it holds. Activating an active account is not an error.
func (s *AuthService) Activate(ctx context.Context, accountID string) error {
	return s.repos.InTx(ctx, func(ctx context.Context, tx repomanager.Repositories) error {
		if err := tx.Accounts().UpdateStatus(ctx, accountID, models.AccountActive); err != nil {
			return err
		}
		n, err := tx.ActionTokens().DeleteAllForAccount(ctx, accountID, models.ActionActivate)
		if err != nil {
			return err
		}
		s.log.Info(ctx, "account activated", "account_id", accountID, "tokens_dropped", n)
		return nil
	})
}

func variantFor(kind models.ActionKind) auth.Variant {
	if kind == models.ActionForgot {
		return auth.VariantForgot
	}
	return auth.VariantActivate
}

// CheckActionToken verifies raw as a token of kind and requires it to still
// be stored for the same account. It does not consume the token.
func (s *AuthService) CheckActionToken(ctx context.Context, raw string, kind models.ActionKind) (auth.Payload, error) {
	variant := variantFor(kind)
	p, err := s.codec.Verify(raw, variant)
	if err != nil {
		s.metrics.TokenRejected(string(variant))
		return auth.Payload{}, err
	}

	rec, err := s.repos.ActionTokens().FindByToken(ctx, raw, kind)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.TokenRejected(string(variant))
			return auth.Payload{}, common.ErrInvalidToken
		}
		return auth.Payload{}, err
	}
	if rec.AccountID != p.AccountID {
		s.metrics.TokenRejected(string(variant))
		return auth.Payload{}, common.ErrInvalidToken
	}
	return p, nil
}

// ActivateWithToken activates the account an activation token was issued to.
func (s *AuthService) ActivateWithToken(ctx context.Context, raw string) (string, error) {
	p, err := s.CheckActionToken(ctx, raw, models.ActionActivate)
	if err != nil {
		return "", err
	}
	if err := s.Activate(ctx, p.AccountID); err != nil {
		return "", err
	}
	return p.AccountID, nil
}

// Login checks the credentials and issues a new token pair. Unknown emails
// and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (*models.TokenPair, error) {
	acc, err := s.repos.Accounts().FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn the same bcrypt time as a real comparison
			s.hasher.Compare(password, s.dummy())
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Compare(password, acc.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	if !s.opts.AllowPendingLogin && !acc.IsActive() {
		return nil, common.ErrAccountNotActive
	}

	access, refresh, err := s.issuePair(auth.Payload{AccountID: acc.ID, Name: acc.Name})
	if err != nil {
		return nil, err
	}

	pair, err := s.repos.TokenPairs().Create(ctx, &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccountID:    acc.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("persist token pair: %w", err)
	}

	s.metrics.PairIssued()
	return pair, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("gophauth-dummy-password")
	})
	return s.dummyHash
}

func (s *AuthService) issuePair(p auth.Payload) (string, string, error) {
	access, err := s.codec.Issue(auth.VariantAccess, p)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.codec.Issue(auth.VariantRefresh, p)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Refresh exchanges a refresh token for a new pair. The stored pair is
// replaced atomically, so a token can be exchanged only once.
func (s *AuthService) Refresh(ctx context.Context, oldRefresh string) (*models.TokenPair, error) {
	p, err := s.codec.Verify(oldRefresh, auth.VariantRefresh)
	if err != nil {
		s.metrics.TokenRejected(string(auth.VariantRefresh))
		s.metrics.Rotation(metrics.RotationRejected)
		return nil, err
	}

	access, refresh, err := s.issuePair(p)
	if err != nil {
		s.metrics.Rotation(metrics.RotationError)
		return nil, err
	}

	pair, err := s.repos.TokenPairs().Rotate(ctx, oldRefresh, &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.Rotation(metrics.RotationRejected)
			return nil, common.ErrInvalidToken
		}
		s.metrics.Rotation(metrics.RotationError)
		return nil, fmt.Errorf("rotate token pair: %w", err)
	}

	s.metrics.Rotation(metrics.RotationOK)
	s.metrics.PairIssued()
	return pair, nil
}

// Logout revokes the pair holding refreshToken. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if _, err := s.codec.Verify(refreshToken, auth.VariantRefresh); err != nil {
		return err
	}
	return s.repos.TokenPairs().DeleteByRefreshToken(ctx, refreshToken)
}

// Authenticate verifies an access token and requires its pair to still be
// stored, so rotated or revoked pairs stop authenticating.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (auth.Payload, error) {
	p, err := s.codec.Verify(accessToken, auth.VariantAccess)
	if err != nil {
		s.metrics.TokenRejected(string(auth.VariantAccess))
		return auth.Payload{}, err
	}

	pair, err := s.repos.TokenPairs().FindByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.TokenRejected(string(auth.VariantAccess))
			return auth.Payload{}, common.ErrInvalidToken
		}
		return auth.Payload{}, err
	}
	if pair.AccountID != p.AccountID {
		return auth.Payload{}, common.ErrInvalidToken
	}
	return p, nil
}

// ChangePassword replaces the password of accountID after checking the old
// one. The new password may not match the current hash or the archived
// history. Concurrent changes on one account are serialized by the row lock.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	return s.repos.InTx(ctx, func(ctx context.Context, tx repomanager.Repositories) error {
		acc, err := tx.Accounts().FindByIDForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		if !s.hasher.Compare(oldPassword, acc.PasswordHash) {
			return common.ErrInvalidCredentials
		}
		if s.hasher.Compare(newPassword, acc.PasswordHash) {
			return common.ErrPasswordReuse
		}

		history, err := tx.PasswordHistory().ListForAccount(ctx, accountID, s.opts.PasswordHistoryDepth)
		if err != nil {
			return err
		}
		for _, rec := range history {
			if s.hasher.Compare(newPassword, rec.PasswordHash) {
				return common.ErrPasswordReuse
			}
		}

		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		if err := tx.PasswordHistory().Create(ctx, accountID, acc.PasswordHash); err != nil {
			return fmt.Errorf("archive password: %w", err)
		}
		if err := tx.Accounts().UpdatePasswordHash(ctx, accountID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}

		s.log.Info(ctx, "password changed", "account_id", accountID)
		return nil
	})
}

// ForgotPassword issues a password reset token and mails it. A delivery
// failure is returned wrapping common.ErrorDelivery; the token stays stored.
func (s *AuthService) ForgotPassword(ctx context.Context, accountID, emailAddr string) error {
	token, err := s.codec.Issue(auth.VariantForgot, auth.Payload{AccountID: accountID})
	if err != nil {
		return err
	}

	if _, err := s.repos.ActionTokens().Create(ctx, &models.ActionToken{
		Token:     token,
		AccountID: accountID,
		Kind:      models.ActionForgot,
	}); err != nil {
		return fmt.Errorf("persist reset token: %w", err)
	}

	mctx, cancel := s.mailContext(ctx)
	defer cancel()
	if err := s.mailer.SendPasswordResetEmail(mctx, emailAddr, token); err != nil {
		s.log.Error(ctx, "reset email not sent", "account_id", accountID, "error", err)
		return fmt.Errorf("%w: %v", common.ErrorDelivery, err)
	}
	return nil
}

// SetForgotPassword consumes a reset token and sets the new password. Unlike
// ChangePassword it does not consult the password history.
func (s *AuthService) SetForgotPassword(ctx context.Context, newPassword, accountID, rawToken string) error {
	p, err := s.codec.Verify(rawToken, auth.VariantForgot)
	if err != nil {
		s.metrics.TokenRejected(string(auth.VariantForgot))
		return err
	}
	if p.AccountID != accountID {
		return common.ErrInvalidToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	return s.repos.InTx(ctx, func(ctx context.Context, tx repomanager.Repositories) error {
		rec, err := tx.ActionTokens().FindByToken(ctx, rawToken, models.ActionForgot)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}
		if rec.AccountID != accountID {
			return common.ErrInvalidToken
		}

		if err := tx.ActionTokens().DeleteByToken(ctx, rawToken); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}
		if err := tx.Accounts().UpdatePasswordHash(ctx, accountID, hash); err != nil {
			return err
		}

		s.log.Info(ctx, "password reset", "account_id", accountID)
		return nil
	})
}
