package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

type authService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.Registration, error)
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	ActivateWithToken(ctx context.Context, raw string) (string, error)
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (auth.Payload, error)
	ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error
	ForgotPassword(ctx context.Context, accountID, email string) error
	CheckActionToken(ctx context.Context, raw string, kind models.ActionKind) (auth.Payload, error)
	SetForgotPassword(ctx context.Context, newPassword, accountID, raw string) error
}

type avatarService interface {
	Upload(ctx context.Context, accountID, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, accountID string) (*models.Account, error)
	PresignedURL(ctx context.Context, accountID string) (string, error)
}

type GRPCServer struct {
	address string
	auth    authService
	avatars avatarService
	logger  logging.Logger
	health  *health.Server
}

func NewGRPCServer(a string, l logging.Logger, as authService, av avatarService) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    as,
		avatars: av,
		health:  health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(MaxMessageBytes),
		grpc.MaxSendMsgSize(MaxMessageBytes),
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor, s.validationInterceptor),
	)

	RegisterAccountServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
// If serving fails first, the error is returned and ctx is no longer watched.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	served := make(chan struct{})
	defer close(served)

	go func() {
		select {
		case <-ctx.Done():
		case <-served:
			return
		}
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
