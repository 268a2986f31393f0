package grpc

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type capturingMailer struct {
	mu          sync.Mutex
	activations map[string]string
	resets      map[string]string
}

func (m *capturingMailer) SendActivationEmail(_ context.Context, to, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activations[to] = token
	return nil
}

func (m *capturingMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[to] = token
	return nil
}

func (m *capturingMailer) activation(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activations[to]
}

func (m *capturingMailer) reset(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets[to]
}

type memObjects struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (o *memObjects) Put(_ context.Context, key, _ string, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objs[key] = data
	return nil
}

func (o *memObjects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objs, key)
	return nil
}

func (o *memObjects) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://objects.test/%s?expires=%d", key, int(ttl.Seconds())), nil
}

type harness struct {
	client  *Client
	conn    *grpc.ClientConn
	mailer  *capturingMailer
	objects *memObjects
}

func startHarness(t *testing.T) *harness {
	t.Helper()

	repos := repomanager.NewMemoryRepositoryManager()
	codec := auth.NewCodec(map[auth.Variant]auth.Key{
		auth.VariantAccess:   {Secret: []byte("a"), Lifetime: time.Hour},
		auth.VariantRefresh:  {Secret: []byte("r"), Lifetime: 24 * time.Hour},
		auth.VariantActivate: {Secret: []byte("act"), Lifetime: time.Hour},
		auth.VariantForgot:   {Secret: []byte("f"), Lifetime: time.Hour},
	})
	mailer := &capturingMailer{activations: map[string]string{}, resets: map[string]string{}}
	objects := &memObjects{objs: map[string][]byte{}}

	authSvc := services.NewAuthService(repos, auth.NewHasher(bcrypt.MinCost), codec, mailer, nil, logging.Nop{},
		services.AuthOptions{AllowPendingLogin: false})
	avatarSvc := services.NewAvatarService(repos, objects, logging.Nop{})
	srv := NewGRPCServer("bufconn", logging.Nop{}, authSvc, avatarSvc)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		MessageSizeOptions(),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})

	return &harness{client: NewClient(conn), conn: conn, mailer: mailer, objects: objects}
}

func code(err error) codes.Code {
	return status.Code(err)
}

func TestEndToEnd_AccountLifecycle(t *testing.T) {
	h := startHarness(t)
	ctx := context.Background()
	c := h.client

	ping, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OK", ping.Status)

	reg, err := c.Register(ctx, &RegisterRequest{Email: "Ann@Example.com", Name: "Ann", Password: "first-pass", ConfirmPassword: "first-pass"})
	require.NoError(t, err)
	assert.Equal(t, "pending", reg.Status)
	assert.True(t, reg.EmailSent)

	_, err = c.Register(ctx, &RegisterRequest{Email: "ann@example.com", Name: "Ann", Password: "first-pass", ConfirmPassword: "first-pass"})
	assert.Equal(t, codes.AlreadyExists, code(err))

	// pending accounts cannot log in with this policy
	_, err = c.Login(ctx, &LoginRequest{Email: "ann@example.com", Password: "first-pass"})
	assert.Equal(t, codes.FailedPrecondition, code(err))

	activation := h.mailer.activation("ann@example.com")
	require.NotEmpty(t, activation)
	act, err := c.Activate(ctx, &TokenRequest{Token: activation})
	require.NoError(t, err)
	assert.Equal(t, reg.AccountID, act.AccountID)

	_, err = c.Activate(ctx, &TokenRequest{Token: activation})
	assert.Equal(t, codes.Unauthenticated, code(err))

	pair, err := c.Login(ctx, &LoginRequest{Email: "ann@example.com", Password: "first-pass"})
	require.NoError(t, err)

	_, err = c.Login(ctx, &LoginRequest{Email: "ann@example.com", Password: "wrong-pass"})
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Unauthenticated, st.Code())
	assert.Equal(t, "unauthorized", st.Message())

	next, err := c.Refresh(ctx, &RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	_, err = c.Refresh(ctx, &RefreshRequest{RefreshToken: pair.RefreshToken})
	assert.Equal(t, codes.Unauthenticated, code(err))

	// the rotated access token no longer authenticates
	_, err = c.ChangePassword(WithAccessToken(ctx, pair.AccessToken), &ChangePasswordRequest{OldPassword: "first-pass", NewPassword: "second-pass"})
	assert.Equal(t, codes.Unauthenticated, code(err))

	authed := WithAccessToken(ctx, next.AccessToken)
	_, err = c.ChangePassword(authed, &ChangePasswordRequest{OldPassword: "first-pass", NewPassword: "first-pass"})
	assert.Equal(t, codes.InvalidArgument, code(err))
	_, err = c.ChangePassword(authed, &ChangePasswordRequest{OldPassword: "first-pass", NewPassword: "second-pass"})
	require.NoError(t, err)
	_, err = c.ChangePassword(authed, &ChangePasswordRequest{OldPassword: "second-pass", NewPassword: "first-pass"})
	assert.Equal(t, codes.InvalidArgument, code(err))

	_, err = c.Logout(ctx, &RefreshRequest{RefreshToken: next.RefreshToken})
	require.NoError(t, err)
	_, err = c.Refresh(ctx, &RefreshRequest{RefreshToken: next.RefreshToken})
	assert.Equal(t, codes.Unauthenticated, code(err))
}

func TestEndToEnd_ForgotPassword(t *testing.T) {
	h := startHarness(t)
	ctx := context.Background()
	c := h.client

	_, err := c.Register(ctx, &RegisterRequest{Email: "bob@example.com", Name: "Bob", Password: "first-pass", ConfirmPassword: "first-pass"})
	require.NoError(t, err)
	_, err = c.Activate(ctx, &TokenRequest{Token: h.mailer.activation("bob@example.com")})
	require.NoError(t, err)

	_, err = c.ForgotPassword(ctx, &ForgotPasswordRequest{Email: "nobody@example.com"})
	assert.Equal(t, codes.NotFound, code(err))

	_, err = c.ForgotPassword(ctx, &ForgotPasswordRequest{Email: "bob@example.com"})
	require.NoError(t, err)
	token := h.mailer.reset("bob@example.com")
	require.NotEmpty(t, token)

	_, err = c.SetForgotPassword(ctx, &SetForgotPasswordRequest{Token: token, Password: "reset-pass", ConfirmPassword: "nope-pass"})
	assert.Equal(t, codes.InvalidArgument, code(err))

	_, err = c.SetForgotPassword(ctx, &SetForgotPasswordRequest{Token: token, Password: "reset-pass", ConfirmPassword: "reset-pass"})
	require.NoError(t, err)
	_, err = c.SetForgotPassword(ctx, &SetForgotPasswordRequest{Token: token, Password: "again-pass", ConfirmPassword: "again-pass"})
	assert.Equal(t, codes.Unauthenticated, code(err))

	_, err = c.Login(ctx, &LoginRequest{Email: "bob@example.com", Password: "first-pass"})
	assert.Equal(t, codes.Unauthenticated, code(err))
	_, err = c.Login(ctx, &LoginRequest{Email: "bob@example.com", Password: "reset-pass"})
	require.NoError(t, err)
}

func TestEndToEnd_Avatars(t *testing.T) {
	h := startHarness(t)
	ctx := context.Background()
	c := h.client

	_, err := c.GetAvatarURL(ctx)
	assert.Equal(t, codes.Unauthenticated, code(err))

	_, err = c.Register(ctx, &RegisterRequest{Email: "cat@example.com", Name: "Cat", Password: "first-pass", ConfirmPassword: "first-pass"})
	require.NoError(t, err)
	_, err = c.Activate(ctx, &TokenRequest{Token: h.mailer.activation("cat@example.com")})
	require.NoError(t, err)
	pair, err := c.Login(ctx, &LoginRequest{Email: "cat@example.com", Password: "first-pass"})
	require.NoError(t, err)
	authed := WithAccessToken(ctx, pair.AccessToken)

	_, err = c.GetAvatarURL(authed)
	assert.Equal(t, codes.NotFound, code(err))

	_, err = c.UploadAvatar(authed, &UploadAvatarRequest{ContentType: "application/pdf", Data: []byte("x")})
	assert.Equal(t, codes.InvalidArgument, code(err))

	up, err := c.UploadAvatar(authed, &UploadAvatarRequest{ContentType: "image/png", Data: []byte("png")})
	require.NoError(t, err)
	assert.Contains(t, up.Key, "avatars/")

	url, err := c.GetAvatarURL(authed)
	require.NoError(t, err)
	assert.Equal(t, "https://objects.test/"+up.Key+"?expires=900", url.URL)

	_, err = c.DeleteAvatar(authed)
	require.NoError(t, err)
	assert.Empty(t, h.objects.objs)

	_, err = c.GetAvatarURL(authed)
	assert.Equal(t, codes.NotFound, code(err))
}

func TestHealthService(t *testing.T) {
	h := startHarness(t)

	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop{}, nil, nil)
	assert.Error(t, srv.Run(context.Background()))
}

func TestEndToEnd_AvatarSizeLimit(t *testing.T) {
	h := startHarness(t)
	ctx := context.Background()
	c := h.client

	_, err := c.Register(ctx, &RegisterRequest{Email: "big@example.com", Name: "Big", Password: "first-pass", ConfirmPassword: "first-pass"})
	require.NoError(t, err)
	_, err = c.Activate(ctx, &TokenRequest{Token: h.mailer.activation("big@example.com")})
	require.NoError(t, err)
	pair, err := c.Login(ctx, &LoginRequest{Email: "big@example.com", Password: "first-pass"})
	require.NoError(t, err)
	authed := WithAccessToken(ctx, pair.AccessToken)

	for _, size := range []int{4 << 20, MaxAvatarBytes} {
		up, err := c.UploadAvatar(authed, &UploadAvatarRequest{ContentType: "image/png", Data: bytes.Repeat([]byte{0x89}, size)})
		require.NoError(t, err, "size %d", size)

		h.objects.mu.Lock()
		assert.Len(t, h.objects.objs[up.Key], size)
		h.objects.mu.Unlock()
	}

	_, err = c.UploadAvatar(authed, &UploadAvatarRequest{ContentType: "image/png", Data: bytes.Repeat([]byte{0x89}, MaxAvatarBytes+1)})
	assert.Equal(t, codes.InvalidArgument, code(err))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServe_ListenerFailureReleasesContextWatcher(t *testing.T) {
	var logs lockedBuffer
	srv := NewGRPCServer("unused", logging.NewJSONLogger(&logs, "debug"), nil, nil)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, lis.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.Error(t, srv.Serve(ctx, lis))

	cancel()
	time.Sleep(100 * time.Millisecond)
	assert.NotContains(t, logs.String(), "Stopping gRPC server")
}
