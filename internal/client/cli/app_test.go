package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeClient struct {
	register *gs.RegisterRequest
	login    *gs.LoginRequest
	change   *gs.ChangePasswordRequest
	reset    *gs.SetForgotPasswordRequest
	upload   *gs.UploadAvatarRequest
	token    string
	loginErr error
}

func outgoingToken(ctx context.Context) string {
	md, _ := metadata.FromOutgoingContext(ctx)
	if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (f *fakeClient) Register(_ context.Context, req *gs.RegisterRequest) (*gs.RegisterResponse, error) {
	f.register = req
	return &gs.RegisterResponse{AccountID: "acc-1", Status: "pending", EmailSent: true}, nil
}
func (f *fakeClient) Activate(_ context.Context, req *gs.TokenRequest) (*gs.ActivateResponse, error) {
	return &gs.ActivateResponse{AccountID: "acc-1"}, nil
}
func (f *fakeClient) Login(_ context.Context, req *gs.LoginRequest) (*gs.TokenPairResponse, error) {
	f.login = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &gs.TokenPairResponse{AccessToken: "a", RefreshToken: "r"}, nil
}
func (f *fakeClient) Refresh(_ context.Context, req *gs.RefreshRequest) (*gs.TokenPairResponse, error) {
	return &gs.TokenPairResponse{AccessToken: "a2", RefreshToken: "r2"}, nil
}
func (f *fakeClient) Logout(context.Context, *gs.RefreshRequest) (*gs.Empty, error) {
	return &gs.Empty{}, nil
}
func (f *fakeClient) ChangePassword(ctx context.Context, req *gs.ChangePasswordRequest) (*gs.Empty, error) {
	f.change = req
	f.token = outgoingToken(ctx)
	return &gs.Empty{}, nil
}
func (f *fakeClient) ForgotPassword(context.Context, *gs.ForgotPasswordRequest) (*gs.Empty, error) {
	return &gs.Empty{}, nil
}
func (f *fakeClient) SetForgotPassword(_ context.Context, req *gs.SetForgotPasswordRequest) (*gs.Empty, error) {
	f.reset = req
	return &gs.Empty{}, nil
}
func (f *fakeClient) UploadAvatar(ctx context.Context, req *gs.UploadAvatarRequest) (*gs.UploadAvatarResponse, error) {
	f.upload = req
	f.token = outgoingToken(ctx)
	return &gs.UploadAvatarResponse{Key: "avatars/acc-1/k"}, nil
}
func (f *fakeClient) DeleteAvatar(ctx context.Context) (*gs.Empty, error) {
	f.token = outgoingToken(ctx)
	return &gs.Empty{}, nil
}
func (f *fakeClient) GetAvatarURL(ctx context.Context) (*gs.AvatarURLResponse, error) {
	f.token = outgoingToken(ctx)
	return &gs.AvatarURLResponse{URL: "https://objects/k"}, nil
}
func (f *fakeClient) Ping(context.Context) (*gs.PingResponse, error) {
	return &gs.PingResponse{Status: "OK"}, nil
}

func pipedInput(t *testing.T) {
	t.Helper()
	orig := isTerminal
	t.Cleanup(func() { isTerminal = orig })
	isTerminal = func(int) bool { return false }
}

func newTestApp(f *fakeClient, input string) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return NewApp(f, time.Second, strings.NewReader(input), &out, &bytes.Buffer{}), &out
}

func TestRun_Ping(t *testing.T) {
	app, out := newTestApp(&fakeClient{}, "")
	require.NoError(t, app.Run(context.Background(), []string{"ping"}))

	var resp gs.PingResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Status)
}

func TestRun_RegisterPromptsTwice(t *testing.T) {
	pipedInput(t)
	f := &fakeClient{}
	app, out := newTestApp(f, "secret-pass\nsecret-pass\n")

	require.NoError(t, app.Run(context.Background(), []string{"register", "ann@example.com", "Ann"}))
	assert.Equal(t, &gs.RegisterRequest{Email: "ann@example.com", Name: "Ann", Password: "secret-pass", ConfirmPassword: "secret-pass"}, f.register)
	assert.Contains(t, out.String(), `"accountId": "acc-1"`)
}

func TestRun_RegisterMismatch(t *testing.T) {
	pipedInput(t)
	f := &fakeClient{}
	app, _ := newTestApp(f, "secret-pass\nother-pass\n")

	err := app.Run(context.Background(), []string{"register", "ann@example.com", "Ann"})
	require.Error(t, err)
	assert.Nil(t, f.register)
}

func TestRun_LoginError(t *testing.T) {
	pipedInput(t)
	f := &fakeClient{loginErr: status.Error(codes.Unauthenticated, "unauthorized")}
	app, out := newTestApp(f, "bad\n")

	err := app.Run(context.Background(), []string{"login", "ann@example.com"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "bad", f.login.Password)
	assert.Empty(t, out.String())
}

func TestRun_TerminalPassword(t *testing.T) {
	origTerm, origRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = origTerm, origRead })
	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("typed-pass"), nil }

	f := &fakeClient{}
	app, _ := newTestApp(f, "")
	require.NoError(t, app.Run(context.Background(), []string{"login", "ann@example.com"}))
	assert.Equal(t, "typed-pass", f.login.Password)

	readPassword = func(int) ([]byte, error) { return nil, errors.New("no tty") }
	assert.Error(t, app.Run(context.Background(), []string{"login", "ann@example.com"}))
}

func TestRun_AuthenticatedCommandsSendToken(t *testing.T) {
	pipedInput(t)
	f := &fakeClient{}
	app, _ := newTestApp(f, "old-pass\nnew-pass\n")

	require.NoError(t, app.Run(context.Background(), []string{"change-password", "access-1"}))
	assert.Equal(t, &gs.ChangePasswordRequest{OldPassword: "old-pass", NewPassword: "new-pass"}, f.change)
	assert.Equal(t, "access-1", f.token)

	path := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))
	require.NoError(t, app.Run(context.Background(), []string{"avatar-upload", "access-2", "image/png", path}))
	assert.Equal(t, []byte("png"), f.upload.Data)
	assert.Equal(t, "access-2", f.token)

	require.NoError(t, app.Run(context.Background(), []string{"avatar-url", "access-3"}))
	assert.Equal(t, "access-3", f.token)
	require.NoError(t, app.Run(context.Background(), []string{"avatar-delete", "access-4"}))
	assert.Equal(t, "access-4", f.token)
}

func TestRun_Reset(t *testing.T) {
	pipedInput(t)
	f := &fakeClient{}
	app, _ := newTestApp(f, "reset-pass\nreset-pass\n")

	require.NoError(t, app.Run(context.Background(), []string{"reset", "tok"}))
	assert.Equal(t, &gs.SetForgotPasswordRequest{Token: "tok", Password: "reset-pass", ConfirmPassword: "reset-pass"}, f.reset)
}

func TestRun_Usage(t *testing.T) {
	app, out := newTestApp(&fakeClient{}, "")

	assert.ErrorIs(t, app.Run(context.Background(), nil), ErrUsage)
	assert.Contains(t, out.String(), "Commands:")

	assert.ErrorIs(t, app.Run(context.Background(), []string{"bogus"}), ErrUsage)

	out.Reset()
	assert.ErrorIs(t, app.Run(context.Background(), []string{"activate"}), ErrUsage)
	assert.Contains(t, out.String(), "activate <token>")
}

func TestRun_Version(t *testing.T) {
	app, out := newTestApp(&fakeClient{}, "")
	require.NoError(t, app.Run(context.Background(), []string{"version"}))
	assert.Contains(t, out.String(), "Build version:")
}
