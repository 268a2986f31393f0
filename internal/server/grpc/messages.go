package grpc

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes
	maxPasswordLen = 72

	// MaxAvatarBytes caps an uploaded avatar.
	MaxAvatarBytes = 5 << 20

	// MaxMessageBytes is the gRPC message limit on both ends. The JSON codec
	// carries avatar bytes as base64, so it is sized to the encoded avatar
	// plus room for the envelope.
	MaxMessageBytes = (MaxAvatarBytes+2)/3*4 + 64<<10
)

var avatarContentTypes = []any{"image/png", "image/jpeg", "image/gif", "image/webp"}

func passwordRules() []validation.Rule {
	return []validation.Rule{validation.Required, validation.Length(minPasswordLen, maxPasswordLen)}
}

func equalTo(other string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != other {
			return errors.New("values must match")
		}
		return nil
	}
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Password, passwordRules()...),
		validation.Field(&r.ConfirmPassword, validation.Required, validation.By(equalTo(r.Password))),
	)
}

type RegisterResponse struct {
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
	// EmailSent is false when the account exists but the activation email
	// could not be delivered.
	EmailSent bool `json:"emailSent"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

func (r TokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

type ActivateResponse struct {
	AccountID string `json:"accountId"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type TokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, passwordRules()...),
	)
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type SetForgotPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r SetForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, passwordRules()...),
		validation.Field(&r.ConfirmPassword, validation.Required, validation.By(equalTo(r.Password))),
	)
}

type UploadAvatarRequest struct {
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

func (r UploadAvatarRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ContentType, validation.Required, validation.In(avatarContentTypes...)),
		validation.Field(&r.Data, validation.Required, validation.Length(1, MaxAvatarBytes)),
	)
}

type UploadAvatarResponse struct {
	Key string `json:"key"`
}

type AvatarURLResponse struct {
	URL string `json:"url"`
}

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}
