package models

import "time"

// OldPasswordRecord archives a password hash that was replaced. It is only
// consulted for reuse checks.
type OldPasswordRecord struct {
	ID           string
	AccountID    string
	PasswordHash string
	CreatedAt    time.Time
}
