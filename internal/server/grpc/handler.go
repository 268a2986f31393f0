package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

// fail logs unexpected errors and converts err to a status.
func (s *GRPCServer) fail(ctx context.Context, method string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.Error(ctx, "request failed", "method", method, "error", err)
	} else {
		s.logger.Debug(ctx, "request rejected", "method", method, "error", err)
	}
	return st
}

func (s *GRPCServer) accountID(ctx context.Context) (string, error) {
	id, ok := accountIDFromContext(ctx)
	if !ok {
		return "", toStatus(common.ErrInvalidToken)
	}
	return id, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	if _, err := s.auth.FindAccountByEmail(ctx, req.Email); err == nil {
		return nil, toStatus(common.ErrorAlreadyExists)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, s.fail(ctx, "Register", err)
	}

	reg, err := s.auth.Register(ctx, services.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		return nil, s.fail(ctx, "Register", err)
	}

	return &RegisterResponse{
		AccountID: reg.Account.ID,
		Status:    string(reg.Account.Status),
		EmailSent: reg.EmailErr == nil,
	}, nil
}

func (s *GRPCServer) Activate(ctx context.Context, req *TokenRequest) (*ActivateResponse, error) {
	id, err := s.auth.ActivateWithToken(ctx, req.Token)
	if err != nil {
		return nil, s.fail(ctx, "Activate", err)
	}
	return &ActivateResponse{AccountID: id}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*TokenPairResponse, error) {
	pair, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.fail(ctx, "Login", err)
	}
	return &TokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *RefreshRequest) (*TokenPairResponse, error) {
	pair, err := s.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.fail(ctx, "Refresh", err)
	}
	return &TokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *RefreshRequest) (*Empty, error) {
	if err := s.auth.Logout(ctx, req.RefreshToken); err != nil {
		return nil, s.fail(ctx, "Logout", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*Empty, error) {
	id, err := s.accountID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.ChangePassword(ctx, id, req.OldPassword, req.NewPassword); err != nil {
		return nil, s.fail(ctx, "ChangePassword", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) ForgotPassword(ctx context.Context, req *ForgotPasswordRequest) (*Empty, error) {
	acc, err := s.auth.FindAccountByEmail(ctx, req.Email)
	if err != nil {
		return nil, s.fail(ctx, "ForgotPassword", err)
	}
	if err := s.auth.ForgotPassword(ctx, acc.ID, acc.Email); err != nil {
		return nil, s.fail(ctx, "ForgotPassword", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) SetForgotPassword(ctx context.Context, req *SetForgotPasswordRequest) (*Empty, error) {
	p, err := s.auth.CheckActionToken(ctx, req.Token, models.ActionForgot)
	if err != nil {
		return nil, s.fail(ctx, "SetForgotPassword", err)
	}
	if err := s.auth.SetForgotPassword(ctx, req.Password, p.AccountID, req.Token); err != nil {
		return nil, s.fail(ctx, "SetForgotPassword", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) UploadAvatar(ctx context.Context, req *UploadAvatarRequest) (*UploadAvatarResponse, error) {
	id, err := s.accountID(ctx)
	if err != nil {
		return nil, err
	}
	key, err := s.avatars.Upload(ctx, id, req.ContentType, req.Data)
	if err != nil {
		return nil, s.fail(ctx, "UploadAvatar", err)
	}
	return &UploadAvatarResponse{Key: key}, nil
}

func (s *GRPCServer) DeleteAvatar(ctx context.Context, _ *Empty) (*Empty, error) {
	id, err := s.accountID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.avatars.Delete(ctx, id); err != nil {
		return nil, s.fail(ctx, "DeleteAvatar", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) GetAvatarURL(ctx context.Context, _ *Empty) (*AvatarURLResponse, error) {
	id, err := s.accountID(ctx)
	if err != nil {
		return nil, err
	}
	url, err := s.avatars.PresignedURL(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "GetAvatarURL", err)
	}
	return &AvatarURLResponse{URL: url}, nil
}

func (s *GRPCServer) Ping(context.Context, *Empty) (*PingResponse, error) {
	return &PingResponse{Status: "OK"}, nil
}
