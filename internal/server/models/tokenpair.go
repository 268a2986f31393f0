package models

import "time"

// TokenPair is an issued access/refresh token pair. An account may hold
// several at once, one per device.
type TokenPair struct {
	ID           string
	AccessToken  string
	RefreshToken string
	AccountID    string
	IssuedAt     time.Time
}
