package grpc

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

type ctxKey string

const accountIDKey ctxKey = "accountID"

// authenticatedMethods need a valid access token in metadata.
var authenticatedMethods = map[string]bool{
	fullMethod("ChangePassword"): true,
	fullMethod("UploadAvatar"):   true,
	fullMethod("DeleteAvatar"):   true,
	fullMethod("GetAvatarURL"):   true,
}

func accountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !authenticatedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, toStatus(common.ErrInvalidToken)
	}

	p, err := s.auth.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, s.fail(ctx, info.FullMethod, err)
	}

	return handler(context.WithValue(ctx, accountIDKey, p.AccountID), req)
}

// validationInterceptor rejects requests whose Validate method fails.
func (s *GRPCServer) validationInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if v, ok := req.(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, toStatus(fmt.Errorf("%w: %v", common.ErrorValidation, err))
		}
	}
	return handler(ctx, req)
}
