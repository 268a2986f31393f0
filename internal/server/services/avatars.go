package services

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/storage"
)

// AvatarURLTTL is how long a presigned avatar link stays valid.
const AvatarURLTTL = 15 * time.Minute

var newObjectID = func() string { return ulid.Make().String() }

// AvatarService keeps one avatar object per account in object storage and
// its key on the account record.
type AvatarService struct {
	repos   repomanager.RepositoryManager
	objects storage.ObjectStore
	log     logging.Logger
}

func NewAvatarService(repos repomanager.RepositoryManager, objects storage.ObjectStore, log logging.Logger) *AvatarService {
	return &AvatarService{repos: repos, objects: objects, log: log.With("module", "avatars")}
}

func avatarKey(accountID string) string {
	return fmt.Sprintf("avatars/%s/%s", accountID, newObjectID())
}

// Upload stores data as the new avatar of accountID and returns its key. The
// previous object is removed once the new key is recorded.
func (s *AvatarService) Upload(ctx context.Context, accountID, contentType string, data []byte) (string, error) {
	acc, err := s.repos.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return "", err
	}

	key := avatarKey(accountID)
	if err := s.objects.Put(ctx, key, contentType, data); err != nil {
		return "", err
	}

	if err := s.repos.Accounts().UpdateAvatar(ctx, accountID, key); err != nil {
		if derr := s.objects.Delete(ctx, key); derr != nil {
			s.log.Warn(ctx, "orphaned avatar object", "key", key, "error", derr)
		}
		return "", fmt.Errorf("record avatar: %w", err)
	}

	if acc.Avatar != "" {
		if err := s.objects.Delete(ctx, acc.Avatar); err != nil {
			s.log.Warn(ctx, "previous avatar not deleted", "key", acc.Avatar, "error", err)
		}
	}

	s.log.Info(ctx, "avatar uploaded", "account_id", accountID, "size", len(data))
	return key, nil
}

// Delete removes the avatar of accountID. An account without one is left as is.
func (s *AvatarService) Delete(ctx context.Context, accountID string) (*models.Account, error) {
	acc, err := s.repos.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.Avatar == "" {
		return acc, nil
	}

	if err := s.objects.Delete(ctx, acc.Avatar); err != nil {
		return nil, err
	}
	if err := s.repos.Accounts().UpdateAvatar(ctx, accountID, ""); err != nil {
		return nil, fmt.Errorf("clear avatar: %w", err)
	}

	acc.Avatar = ""
	return acc, nil
}

// PresignedURL returns a temporary GET link to the avatar of accountID.
func (s *AvatarService) PresignedURL(ctx context.Context, accountID string) (string, error) {
	acc, err := s.repos.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if acc.Avatar == "" {
		return "", fmt.Errorf("avatar: %w", common.ErrorNotFound)
	}
	return s.objects.PresignGet(ctx, acc.Avatar, AvatarURLTTL)
}
