package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "gophauth.AccountService"

// AccountServer is the server side of gophauth.AccountService.
type AccountServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Activate(context.Context, *TokenRequest) (*ActivateResponse, error)
	Login(context.Context, *LoginRequest) (*TokenPairResponse, error)
	Refresh(context.Context, *RefreshRequest) (*TokenPairResponse, error)
	Logout(context.Context, *RefreshRequest) (*Empty, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*Empty, error)
	ForgotPassword(context.Context, *ForgotPasswordRequest) (*Empty, error)
	SetForgotPassword(context.Context, *SetForgotPasswordRequest) (*Empty, error)
	UploadAvatar(context.Context, *UploadAvatarRequest) (*UploadAvatarResponse, error)
	DeleteAvatar(context.Context, *Empty) (*Empty, error)
	GetAvatarURL(context.Context, *Empty) (*AvatarURLResponse, error)
	Ping(context.Context, *Empty) (*PingResponse, error)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary adapts a typed AccountServer method to a grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(AccountServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(AccountServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var AccountServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", AccountServer.Register),
		unary("Activate", AccountServer.Activate),
		unary("Login", AccountServer.Login),
		unary("Refresh", AccountServer.Refresh),
		unary("Logout", AccountServer.Logout),
		unary("ChangePassword", AccountServer.ChangePassword),
		unary("ForgotPassword", AccountServer.ForgotPassword),
		unary("SetForgotPassword", AccountServer.SetForgotPassword),
		unary("UploadAvatar", AccountServer.UploadAvatar),
		unary("DeleteAvatar", AccountServer.DeleteAvatar),
		unary("GetAvatarURL", AccountServer.GetAvatarURL),
		unary("Ping", AccountServer.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/account",
}

// RegisterAccountServer attaches srv to s.
func RegisterAccountServer(s grpc.ServiceRegistrar, srv AccountServer) {
	s.RegisterService(&AccountServiceDesc, srv)
}
