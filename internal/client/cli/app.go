package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/buildinfo"
	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

// ErrUsage is returned for unknown commands or wrong argument counts.
var ErrUsage = errors.New("usage")

type accountClient interface {
	Register(ctx context.Context, req *gs.RegisterRequest) (*gs.RegisterResponse, error)
	Activate(ctx context.Context, req *gs.TokenRequest) (*gs.ActivateResponse, error)
	Login(ctx context.Context, req *gs.LoginRequest) (*gs.TokenPairResponse, error)
	Refresh(ctx context.Context, req *gs.RefreshRequest) (*gs.TokenPairResponse, error)
	Logout(ctx context.Context, req *gs.RefreshRequest) (*gs.Empty, error)
	ChangePassword(ctx context.Context, req *gs.ChangePasswordRequest) (*gs.Empty, error)
	ForgotPassword(ctx context.Context, req *gs.ForgotPasswordRequest) (*gs.Empty, error)
	SetForgotPassword(ctx context.Context, req *gs.SetForgotPasswordRequest) (*gs.Empty, error)
	UploadAvatar(ctx context.Context, req *gs.UploadAvatarRequest) (*gs.UploadAvatarResponse, error)
	DeleteAvatar(ctx context.Context) (*gs.Empty, error)
	GetAvatarURL(ctx context.Context) (*gs.AvatarURLResponse, error)
	Ping(ctx context.Context) (*gs.PingResponse, error)
}

type App struct {
	client  accountClient
	timeout time.Duration
	in      *bufio.Reader
	out     io.Writer
	// prompt receives password prompts so out carries only replies.
	prompt io.Writer
}

func NewApp(client accountClient, timeout time.Duration, in io.Reader, out, prompt io.Writer) *App {
	return &App{client: client, timeout: timeout, in: bufio.NewReader(in), out: out, prompt: prompt}
}

type command struct {
	usage string
	// args is the number of positional arguments; passwords are prompted for.
	args int
	run  func(a *App, ctx context.Context, args []string) (any, error)
}

var commands = map[string]command{
	"ping": {"ping", 0, func(a *App, ctx context.Context, _ []string) (any, error) {
		return a.client.Ping(ctx)
	}},
	"register": {"register <email> <name>", 2, (*App).register},
	"activate": {"activate <token>", 1, func(a *App, ctx context.Context, args []string) (any, error) {
		return a.client.Activate(ctx, &gs.TokenRequest{Token: args[0]})
	}},
	"login": {"login <email>", 1, func(a *App, ctx context.Context, args []string) (any, error) {
		pw, err := a.password("Password")
		if err != nil {
			return nil, err
		}
		return a.client.Login(ctx, &gs.LoginRequest{Email: args[0], Password: pw})
	}},
	"refresh": {"refresh <refresh-token>", 1, func(a *App, ctx context.Context, args []string) (any, error) {
		return a.client.Refresh(ctx, &gs.RefreshRequest{RefreshToken: args[0]})
	}},
	"logout": {"logout <refresh-token>", 1, func(a *App, ctx context.Context, args []string) (any, error) {
		return a.client.Logout(ctx, &gs.RefreshRequest{RefreshToken: args[0]})
	}},
	"change-password": {"change-password <access-token>", 1, (*App).changePassword},
	"forgot": {"forgot <email>", 1, func(a *App, ctx context.Context, args []string) (any, error) {
		return a.client.ForgotPassword(ctx, &gs.ForgotPasswordRequest{Email: args[0]})
	}},
	"reset": {"reset <reset-token>", 1, (*App).resetPassword},
	"avatar-upload": {"avatar-upload <access-token> <content-type> <file>", 3, func(a *App, ctx context.Context, args []string) (any, error) {
		data, err := os.ReadFile(args[2])
		if err != nil {
			return nil, err
		}
		return a.client.UploadAvatar(gs.WithAccessToken(ctx, args[0]), &gs.UploadAvatarRequest{ContentType: args[1], Data: data})
	}},
	"avatar-url": {"avatar-url <access-token>", 1, func(a *App, ctx context.Context, args []string) (any, error) {
		return a.client.GetAvatarURL(gs.WithAccessToken(ctx, args[0]))
	}},
	"avatar-delete": {"avatar-delete <access-token>", 1, func(a *App, ctx context.Context, args []string) (any, error) {
		return a.client.DeleteAvatar(gs.WithAccessToken(ctx, args[0]))
	}},
}

func (a *App) password(prompt string) (string, error) {
	return GetPassword(a.in, prompt, a.prompt)
}

func (a *App) confirmedPassword() (string, error) {
	pw, err := a.password("Password")
	if err != nil {
		return "", err
	}
	confirm, err := a.password("Repeat password")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}

func (a *App) register(ctx context.Context, args []string) (any, error) {
	pw, err := a.confirmedPassword()
	if err != nil {
		return nil, err
	}
	return a.client.Register(ctx, &gs.RegisterRequest{Email: args[0], Name: args[1], Password: pw, ConfirmPassword: pw})
}

func (a *App) changePassword(ctx context.Context, args []string) (any, error) {
	old, err := a.password("Current password")
	if err != nil {
		return nil, err
	}
	pw, err := a.password("New password")
	if err != nil {
		return nil, err
	}
	return a.client.ChangePassword(gs.WithAccessToken(ctx, args[0]), &gs.ChangePasswordRequest{OldPassword: old, NewPassword: pw})
}

func (a *App) resetPassword(ctx context.Context, args []string) (any, error) {
	pw, err := a.confirmedPassword()
	if err != nil {
		return nil, err
	}
	return a.client.SetForgotPassword(ctx, &gs.SetForgotPasswordRequest{Token: args[0], Password: pw, ConfirmPassword: pw})
}

// Usage lists every command.
func (a *App) Usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(a.out, "Usage: gophauth-cli [-a addr] [-t timeout] <command> [args]")
	fmt.Fprintln(a.out, "Commands:")
	for _, name := range names {
		fmt.Fprintln(a.out, "  "+commands[name].usage)
	}
	fmt.Fprintln(a.out, "  version")
}

// Run executes the command named by args[0] and prints its reply.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.Usage()
		return ErrUsage
	}

	name, rest := args[0], args[1:]
	if name == "version" {
		buildinfo.PrintBuildData(a.out)
		return nil
	}

	cmd, ok := commands[name]
	if !ok || len(rest) != cmd.args {
		if ok {
			fmt.Fprintln(a.out, "Usage: gophauth-cli "+cmd.usage)
		} else {
			a.Usage()
		}
		return fmt.Errorf("%w: %s", ErrUsage, strings.Join(args, " "))
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := cmd.run(a, ctx, rest)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
