// Package auth issues and verifies signed tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Variant names a token class. Each variant is signed with its own secret so
// that a token of one class never verifies as another.
type Variant string

const (
	VariantAccess   Variant = "access"
	VariantRefresh  Variant = "refresh"
	VariantActivate Variant = "activate"
	VariantForgot   Variant = "forgot"
)

// Key is the signing secret and lifetime of one variant.
type Key struct {
	Secret   []byte
	Lifetime time.Duration
}

// Payload is the application data carried by a token. Name is only set on
// access and refresh tokens.
type Payload struct {
	AccountID string
	Name      string
}

// Claims are the JWT claims written by Codec.
type Claims struct {
	jwt.RegisteredClaims
	Type      Variant `json:"typ"`
	AccountID string  `json:"accountId"`
	Name      string  `json:"name,omitempty"`
}

// Codec signs and verifies HS256 tokens for a fixed set of variants.
type Codec struct {
	keys map[Variant]Key
	now  func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock replaces the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec builds a Codec over keys. The map is copied.
func NewCodec(keys map[Variant]Key, opts ...Option) *Codec {
	c := &Codec{keys: make(map[Variant]Key, len(keys)), now: time.Now}
	for v, k := range keys {
		c.keys[v] = k
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) key(v Variant) (Key, error) {
	k, ok := c.keys[v]
	if !ok || len(k.Secret) == 0 {
		return Key{}, fmt.Errorf("%w: no key for %q tokens", common.ErrorInternal, v)
	}
	return k, nil
}

// Lifetime returns the configured lifetime of v, or zero if v is unknown.
func (c *Codec) Lifetime(v Variant) time.Duration {
	return c.keys[v].Lifetime
}

// Issue signs a new token of variant v carrying p.
func (c *Codec) Issue(v Variant, p Payload) (string, error) {
	k, err := c.key(v)
	if err != nil {
		return "", err
	}

	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(k.Lifetime)),
		},
		Type:      v,
		AccountID: p.AccountID,
		Name:      p.Name,
	})

	s, err := token.SignedString(k.Secret)
	if err != nil {
		return "", fmt.Errorf("%w: sign token: %v", common.ErrorInternal, err)
	}
	return s, nil
}

// Verify checks the signature, expiry and variant of tokenString and returns
// its payload. Every rejection is reported as common.ErrInvalidToken.
func (c *Codec) Verify(tokenString string, v Variant) (Payload, error) {
	k, err := c.key(v)
	if err != nil {
		return Payload{}, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return k.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, fmt.Errorf("%w: expired", common.ErrInvalidToken)
		}
		return Payload{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.Type != v || claims.AccountID == "" {
		return Payload{}, common.ErrInvalidToken
	}

	return Payload{AccountID: claims.AccountID, Name: claims.Name}, nil
}
