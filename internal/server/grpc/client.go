package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// Client calls AccountService over an existing connection using the JSON codec.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// WithAccessToken attaches token to outgoing calls made with the returned context.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, token)
}

// MessageSizeOptions raises the client's message limits to match the server,
// so avatar uploads up to MaxAvatarBytes fit in one call.
func MessageSizeOptions() grpc.DialOption {
	return grpc.WithDefaultCallOptions(
		grpc.MaxCallSendMsgSize(MaxMessageBytes),
		grpc.MaxCallRecvMsgSize(MaxMessageBytes),
	)
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c, "Register", req)
}

func (c *Client) Activate(ctx context.Context, req *TokenRequest) (*ActivateResponse, error) {
	return invoke[ActivateResponse](ctx, c, "Activate", req)
}

func (c *Client) Login(ctx context.Context, req *LoginRequest) (*TokenPairResponse, error) {
	return invoke[TokenPairResponse](ctx, c, "Login", req)
}

func (c *Client) Refresh(ctx context.Context, req *RefreshRequest) (*TokenPairResponse, error) {
	return invoke[TokenPairResponse](ctx, c, "Refresh", req)
}

func (c *Client) Logout(ctx context.Context, req *RefreshRequest) (*Empty, error) {
	return invoke[Empty](ctx, c, "Logout", req)
}

func (c *Client) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*Empty, error) {
	return invoke[Empty](ctx, c, "ChangePassword", req)
}

func (c *Client) ForgotPassword(ctx context.Context, req *ForgotPasswordRequest) (*Empty, error) {
	return invoke[Empty](ctx, c, "ForgotPassword", req)
}

func (c *Client) SetForgotPassword(ctx context.Context, req *SetForgotPasswordRequest) (*Empty, error) {
	return invoke[Empty](ctx, c, "SetForgotPassword", req)
}

func (c *Client) UploadAvatar(ctx context.Context, req *UploadAvatarRequest) (*UploadAvatarResponse, error) {
	return invoke[UploadAvatarResponse](ctx, c, "UploadAvatar", req)
}

func (c *Client) DeleteAvatar(ctx context.Context) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeleteAvatar", &Empty{})
}

func (c *Client) GetAvatarURL(ctx context.Context) (*AvatarURLResponse, error) {
	return invoke[AvatarURLResponse](ctx, c, "GetAvatarURL", &Empty{})
}

func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c, "Ping", &Empty{})
}
